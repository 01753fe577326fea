package model

import "time"

// EpochZero is the timestamp used when the CRM omits createdAt or updatedAt.
var EpochZero = time.Unix(0, 0).UTC()

// Record is a deal, ticket or note as returned to callers. Property values
// are never null: absent values are represented by the empty string.
type Record struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Company is a CRM company associated with a deal.
type Company struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// DealDetail is a single deal with its owner and associated companies.
type DealDetail struct {
	Record
	Archived            bool      `json:"archived"`
	AssociatedCompanies []Company `json:"associatedCompanies"`
	OwnerInfo           *Owner    `json:"ownerInfo"`
}
