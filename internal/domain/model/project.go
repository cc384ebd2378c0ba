package model

// Resolution is the time granularity of a project's planning grid.
type Resolution string

const (
	ResolutionDay   Resolution = "day"
	ResolutionWeek  Resolution = "week"
	ResolutionMonth Resolution = "month"
	ResolutionYear  Resolution = "year"
)

// Valid reports whether the resolution is one of the supported values.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionDay, ResolutionWeek, ResolutionMonth, ResolutionYear:
		return true
	}
	return false
}

// Project is the root of a plan; it owns tasks.
type Project struct {
	ID         RecordID   `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Name       string     `json:"name"`
	Resolution Resolution `json:"resolution"`
	StartDate  string     `json:"start_date"`
	EndDate    string     `json:"end_date"`
}

// ProjectUpdate carries a partial update of a project.
type ProjectUpdate struct {
	Name       *string     `json:"name,omitempty"`
	Resolution *Resolution `json:"resolution,omitempty"`
	StartDate  *string     `json:"start_date,omitempty"`
	EndDate    *string     `json:"end_date,omitempty"`
}
