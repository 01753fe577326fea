package model

// Stage is a single step of a CRM pipeline, normalized for display.
type Stage struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	DisplayOrder int     `json:"displayOrder"`
	Probability  float64 `json:"probability"`
}

// Pipeline is an ordered collection of stages.
type Pipeline struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Stages []Stage `json:"stages"`
}

// StageIDs returns the set of stage ids in stages.
func StageIDs(stages []Stage) map[string]struct{} {
	ids := make(map[string]struct{}, len(stages))
	for _, s := range stages {
		ids[s.ID] = struct{}{}
	}
	return ids
}
