package model

// Owner is a CRM user that deals and tickets can be assigned to.
type Owner struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Archived  bool   `json:"archived,omitempty"`
}
