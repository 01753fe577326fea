package hubspot

import (
	"bytes"
	"encoding/json"
)

// ID is a HubSpot object id. Some endpoints (owners, v4 associations)
// return ids as JSON numbers, others as strings.
type ID string

// UnmarshalJSON accepts both string and numeric ids.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// PipelineStage is a raw stage from the pipelines API. Metadata.probability
// is a 0-100 numeric string on deal pipelines.
type PipelineStage struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	DisplayOrder *int              `json:"displayOrder,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Archived     bool              `json:"archived,omitempty"`
}

// Pipeline is a raw pipeline from the pipelines API.
type Pipeline struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	DisplayOrder int             `json:"displayOrder"`
	Stages       []PipelineStage `json:"stages"`
	Archived     bool            `json:"archived,omitempty"`
}

// PipelinesResponse is the response of GET /crm/v3/pipelines/{objectType}.
type PipelinesResponse struct {
	Results []Pipeline `json:"results"`
}

// Filter is a single property filter. Filters in one group are ANDed.
type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value,omitempty"`
}

// FilterGroup is a set of filters combined with AND. Multiple groups in a
// search request are combined with OR.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// OperatorEQ is the equality filter operator.
const OperatorEQ = "EQ"

// SearchRequest is the body of POST /crm/v3/objects/{objectType}/search.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
	Sorts        []string      `json:"sorts,omitempty"`
	After        string        `json:"after,omitempty"`
}

// SearchResult is one record of a search response. Property values may be
// null.
type SearchResult struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
	CreatedAt  string             `json:"createdAt,omitempty"`
	UpdatedAt  string             `json:"updatedAt,omitempty"`
	Archived   bool               `json:"archived,omitempty"`
}

// PagingNext holds the cursor of the next page.
type PagingNext struct {
	After string `json:"after"`
	Link  string `json:"link,omitempty"`
}

// Paging is the pagination block of list and search responses.
type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

// NextAfter returns the next-page cursor, or "" when there is none.
func (p *Paging) NextAfter() string {
	if p == nil || p.Next == nil {
		return ""
	}
	return p.Next.After
}

// SearchResponse is the response of a search call. At most one page.
type SearchResponse struct {
	Total   int            `json:"total"`
	Results []SearchResult `json:"results"`
	Paging  *Paging        `json:"paging,omitempty"`
}

// Object is a CRM object returned by the basic objects API.
type Object = SearchResult

// Association is a v4 association from one object to another.
type Association struct {
	ToObjectID       ID                `json:"toObjectId"`
	AssociationTypes []AssociationType `json:"associationTypes,omitempty"`
}

// AssociationType describes the label of an association.
type AssociationType struct {
	Category string `json:"category"`
	TypeID   int    `json:"typeId"`
	Label    string `json:"label,omitempty"`
}

// AssociationSpec is used when creating an association.
type AssociationSpec struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

// CategoryHubSpotDefined is the association category of built-in types.
const CategoryHubSpotDefined = "HUBSPOT_DEFINED"

// Built-in association types from notes.
const (
	AssociationTypeNoteToDeal   = 214
	AssociationTypeNoteToTicket = 228
)

type associationsResponse struct {
	Results []Association `json:"results"`
	Paging  *Paging       `json:"paging,omitempty"`
}

// Owner is a HubSpot owner. Nullable fields decode to their zero value.
type Owner struct {
	ID        ID     `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Archived  bool   `json:"archived,omitempty"`
}

type ownersResponse struct {
	Results []Owner `json:"results"`
	Paging  *Paging `json:"paging,omitempty"`
}

// ExportRequest is the body of POST /crm/v3/exports/export/async.
type ExportRequest struct {
	ExportType                  string   `json:"exportType"`
	Format                      string   `json:"format"`
	ExportName                  string   `json:"exportName"`
	ObjectProperties            []string `json:"objectProperties"`
	ObjectType                  string   `json:"objectType"`
	Language                    string   `json:"language"`
	ExportInternalValuesOptions []string `json:"exportInternalValuesOptions"`
}

// ExportStartResponse is returned when an export job is accepted.
type ExportStartResponse struct {
	ID    ID                `json:"id"`
	Links map[string]string `json:"links,omitempty"`
}

// ExportStatusResponse is the response of the export status endpoint.
// Result holds the download URL once Status is COMPLETE.
type ExportStatusResponse struct {
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
	StartedAt   string `json:"startedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}
