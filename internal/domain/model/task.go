package model

// Task belongs to exactly one project and owns resources. SortOrder defines
// display order; it is not guaranteed unique or contiguous.
type Task struct {
	ID        RecordID `json:"id"`
	ProjectID string   `json:"project_id"`
	DisplayID string   `json:"display_id"`
	Name      string   `json:"name"`
	SortOrder int      `json:"sort_order"`
}

// TaskUpdate carries a partial update of a task.
type TaskUpdate struct {
	DisplayID *string `json:"display_id,omitempty"`
	Name      *string `json:"name,omitempty"`
	SortOrder *int    `json:"sort_order,omitempty"`
}
