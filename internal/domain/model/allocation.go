package model

// Allocation is one painted cell: a percentage of a resource's time in one
// date bucket. The (resource_id, date) pair is unique; writes go through
// upsert-by-key semantics, never create plus conflict handling.
type Allocation struct {
	ID         RecordID `json:"id"`
	ResourceID string   `json:"resource_id"`
	Date       string   `json:"date"`
	Percentage float64  `json:"percentage"`
	Color      string   `json:"color_hex"`
}
