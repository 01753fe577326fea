// Package hubspot is a thin REST client for the HubSpot CRM v3/v4 APIs.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.hubapi.com"

// Object types used by the CRM endpoints.
const (
	ObjectDeals     = "deals"
	ObjectTickets   = "tickets"
	ObjectCompanies = "companies"
	ObjectNotes     = "notes"
)

// Client defines the HubSpot API operations used by the CRM service.
type Client interface {
	GetPipelines(ctx context.Context, objectType string) ([]Pipeline, error)
	SearchObjects(ctx context.Context, objectType string, req SearchRequest) (*SearchResponse, error)
	GetObject(ctx context.Context, objectType, id string, properties []string) (*Object, error)
	CreateObject(ctx context.Context, objectType string, properties map[string]string) (*Object, error)
	UpdateObject(ctx context.Context, objectType, id string, properties map[string]string) (*Object, error)
	ListAssociations(ctx context.Context, fromType, fromID, toType string) ([]Association, error)
	CreateAssociation(ctx context.Context, fromType, fromID, toType, toID string, specs []AssociationSpec) error
	GetOwners(ctx context.Context) ([]Owner, error)
	GetOwner(ctx context.Context, id string) (*Owner, error)
	StartExport(ctx context.Context, req ExportRequest) (*ExportStartResponse, error)
	GetExportStatus(ctx context.Context, exportID string) (*ExportStatusResponse, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a HubSpot client authenticated with a private app
// access token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// do sends a request and decodes a JSON response into out (if non-nil).
// Non-2xx responses are returned as *APIError.
func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "hubspot: rate limit wait")
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "hubspot: marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "hubspot: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "hubspot: %s %s", method, path)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "hubspot: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "hubspot: unmarshal %s response", path)
	}
	return nil
}

func (c *httpClient) GetPipelines(ctx context.Context, objectType string) ([]Pipeline, error) {
	var resp PipelinesResponse
	if err := c.do(ctx, http.MethodGet, "/crm/v3/pipelines/"+url.PathEscape(objectType), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *httpClient) SearchObjects(ctx context.Context, objectType string, req SearchRequest) (*SearchResponse, error) {
	if req.FilterGroups == nil {
		req.FilterGroups = []FilterGroup{}
	}
	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/"+url.PathEscape(objectType)+"/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) GetObject(ctx context.Context, objectType, id string, properties []string) (*Object, error) {
	path := "/crm/v3/objects/" + url.PathEscape(objectType) + "/" + url.PathEscape(id)
	if len(properties) > 0 {
		q := url.Values{}
		q.Set("properties", strings.Join(properties, ","))
		path += "?" + q.Encode()
	}
	var obj Object
	if err := c.do(ctx, http.MethodGet, path, nil, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

type propertiesBody struct {
	Properties map[string]string `json:"properties"`
}

func (c *httpClient) CreateObject(ctx context.Context, objectType string, properties map[string]string) (*Object, error) {
	var obj Object
	err := c.do(ctx, http.MethodPost, "/crm/v3/objects/"+url.PathEscape(objectType), propertiesBody{Properties: properties}, &obj)
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

func (c *httpClient) UpdateObject(ctx context.Context, objectType, id string, properties map[string]string) (*Object, error) {
	path := "/crm/v3/objects/" + url.PathEscape(objectType) + "/" + url.PathEscape(id)
	var obj Object
	if err := c.do(ctx, http.MethodPatch, path, propertiesBody{Properties: properties}, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

func (c *httpClient) ListAssociations(ctx context.Context, fromType, fromID, toType string) ([]Association, error) {
	base := "/crm/v4/objects/" + url.PathEscape(fromType) + "/" + url.PathEscape(fromID) + "/associations/" + url.PathEscape(toType)
	var all []Association
	after := ""
	for {
		path := base
		if after != "" {
			path += "?after=" + url.QueryEscape(after)
		}
		var resp associationsResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)
		after = resp.Paging.NextAfter()
		if after == "" {
			return all, nil
		}
	}
}

func (c *httpClient) CreateAssociation(ctx context.Context, fromType, fromID, toType, toID string, specs []AssociationSpec) error {
	path := "/crm/v4/objects/" + url.PathEscape(fromType) + "/" + url.PathEscape(fromID) +
		"/associations/" + url.PathEscape(toType) + "/" + url.PathEscape(toID)
	return c.do(ctx, http.MethodPut, path, specs, nil)
}

func (c *httpClient) GetOwners(ctx context.Context) ([]Owner, error) {
	var all []Owner
	after := ""
	for {
		q := url.Values{}
		q.Set("limit", "100")
		if after != "" {
			q.Set("after", after)
		}
		var resp ownersResponse
		if err := c.do(ctx, http.MethodGet, "/crm/v3/owners?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)
		after = resp.Paging.NextAfter()
		if after == "" {
			return all, nil
		}
	}
}

func (c *httpClient) GetOwner(ctx context.Context, id string) (*Owner, error) {
	var owner Owner
	if err := c.do(ctx, http.MethodGet, "/crm/v3/owners/"+url.PathEscape(id), nil, &owner); err != nil {
		return nil, err
	}
	return &owner, nil
}

func (c *httpClient) StartExport(ctx context.Context, req ExportRequest) (*ExportStartResponse, error) {
	var resp ExportStartResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/exports/export/async", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) GetExportStatus(ctx context.Context, exportID string) (*ExportStatusResponse, error) {
	var resp ExportStatusResponse
	path := "/crm/v3/exports/export/async/tasks/" + url.PathEscape(exportID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StatusURL returns the canonical status URL for an export job against
// the public API host.
func StatusURL(exportID string) string {
	return defaultBaseURL + "/crm/v3/exports/export/async/tasks/" + url.PathEscape(exportID) + "/status"
}
