package model

// Resource belongs to exactly one task and owns allocations.
type Resource struct {
	ID        RecordID `json:"id"`
	TaskID    string   `json:"task_id"`
	Name      string   `json:"name"`
	SortOrder int      `json:"sort_order"`
}

// ResourceUpdate carries a partial update of a resource.
type ResourceUpdate struct {
	Name      *string `json:"name,omitempty"`
	SortOrder *int    `json:"sort_order,omitempty"`
}
