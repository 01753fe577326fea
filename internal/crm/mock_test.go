package crm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/pkg/hubspot"
)

var errNotStubbed = errors.New("not stubbed")

// mockClient is a hubspot.Client whose methods are stubbed per test.
type mockClient struct {
	getPipelines      func(ctx context.Context, objectType string) ([]hubspot.Pipeline, error)
	searchObjects     func(ctx context.Context, objectType string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error)
	getObject         func(ctx context.Context, objectType, id string, properties []string) (*hubspot.Object, error)
	createObject      func(ctx context.Context, objectType string, properties map[string]string) (*hubspot.Object, error)
	updateObject      func(ctx context.Context, objectType, id string, properties map[string]string) (*hubspot.Object, error)
	listAssociations  func(ctx context.Context, fromType, fromID, toType string) ([]hubspot.Association, error)
	createAssociation func(ctx context.Context, fromType, fromID, toType, toID string, specs []hubspot.AssociationSpec) error
	getOwners         func(ctx context.Context) ([]hubspot.Owner, error)
	getOwner          func(ctx context.Context, id string) (*hubspot.Owner, error)
	startExport       func(ctx context.Context, req hubspot.ExportRequest) (*hubspot.ExportStartResponse, error)
	getExportStatus   func(ctx context.Context, exportID string) (*hubspot.ExportStatusResponse, error)
}

func (m *mockClient) GetPipelines(ctx context.Context, objectType string) ([]hubspot.Pipeline, error) {
	if m.getPipelines == nil {
		return nil, errNotStubbed
	}
	return m.getPipelines(ctx, objectType)
}

func (m *mockClient) SearchObjects(ctx context.Context, objectType string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error) {
	if m.searchObjects == nil {
		return nil, errNotStubbed
	}
	return m.searchObjects(ctx, objectType, req)
}

func (m *mockClient) GetObject(ctx context.Context, objectType, id string, properties []string) (*hubspot.Object, error) {
	if m.getObject == nil {
		return nil, errNotStubbed
	}
	return m.getObject(ctx, objectType, id, properties)
}

func (m *mockClient) CreateObject(ctx context.Context, objectType string, properties map[string]string) (*hubspot.Object, error) {
	if m.createObject == nil {
		return nil, errNotStubbed
	}
	return m.createObject(ctx, objectType, properties)
}

func (m *mockClient) UpdateObject(ctx context.Context, objectType, id string, properties map[string]string) (*hubspot.Object, error) {
	if m.updateObject == nil {
		return nil, errNotStubbed
	}
	return m.updateObject(ctx, objectType, id, properties)
}

func (m *mockClient) ListAssociations(ctx context.Context, fromType, fromID, toType string) ([]hubspot.Association, error) {
	if m.listAssociations == nil {
		return nil, errNotStubbed
	}
	return m.listAssociations(ctx, fromType, fromID, toType)
}

func (m *mockClient) CreateAssociation(ctx context.Context, fromType, fromID, toType, toID string, specs []hubspot.AssociationSpec) error {
	if m.createAssociation == nil {
		return errNotStubbed
	}
	return m.createAssociation(ctx, fromType, fromID, toType, toID, specs)
}

func (m *mockClient) GetOwners(ctx context.Context) ([]hubspot.Owner, error) {
	if m.getOwners == nil {
		return nil, errNotStubbed
	}
	return m.getOwners(ctx)
}

func (m *mockClient) GetOwner(ctx context.Context, id string) (*hubspot.Owner, error) {
	if m.getOwner == nil {
		return nil, errNotStubbed
	}
	return m.getOwner(ctx, id)
}

func (m *mockClient) StartExport(ctx context.Context, req hubspot.ExportRequest) (*hubspot.ExportStartResponse, error) {
	if m.startExport == nil {
		return nil, errNotStubbed
	}
	return m.startExport(ctx, req)
}

func (m *mockClient) GetExportStatus(ctx context.Context, exportID string) (*hubspot.ExportStatusResponse, error) {
	if m.getExportStatus == nil {
		return nil, errNotStubbed
	}
	return m.getExportStatus(ctx, exportID)
}

// fakeClock advances only when the service sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// newTestService builds a Service whose coordinator and poller never
// really sleep.
func newTestService(t *testing.T, client hubspot.Client, opts ...Option) (*Service, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	coord := resilience.NewCoordinator(resilience.DefaultRetryConfig(), resilience.WithSleep(clock.Sleep))
	opts = append([]Option{WithClock(clock.Now, clock.Sleep)}, opts...)
	return NewService(client, coord, DefaultConfig(), opts...), clock
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func rateLimited() error {
	return &hubspot.APIError{StatusCode: http.StatusTooManyRequests, Message: "secondly limit", Category: "RATE_LIMITS"}
}

func notFound(msg string) error {
	return &hubspot.APIError{StatusCode: http.StatusNotFound, Message: msg, Category: "OBJECT_NOT_FOUND"}
}
