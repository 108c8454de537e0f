package models

// SolveRequest is the data structure for the stateless solve endpoints and the CLI input file
type SolveRequest struct {
	Date              string                  `json:"date" binding:"required"`
	People            []Person                `json:"people"`
	Templates         []TaskTemplate          `json:"templates"`
	Shifts            []Shift                 `json:"shifts"`
	Constraints       []SchedulingConstraint  `json:"constraints"`
	History           map[string]HistoryScore `json:"history,omitempty"`
	FutureAssignments []Shift                 `json:"future_assignments,omitempty"`
	SelectedTaskIDs   []string                `json:"selected_task_ids,omitempty"`
	ResetUnlocked     bool                    `json:"reset_unlocked,omitempty"`
}

// RangeRequest asks the service to solve and persist a date range day by day
type RangeRequest struct {
	From            string   `json:"from" binding:"required"`
	To              string   `json:"to" binding:"required"`
	SelectedTaskIDs []string `json:"selected_task_ids,omitempty"`
	ResetUnlocked   bool     `json:"reset_unlocked,omitempty"`
}

// RangeResponse is returned by the range endpoint
type RangeResponse struct {
	Days      []DayResult `json:"days"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	// Cancelled is set when the run stopped early; Days holds what was finished
	Cancelled bool `json:"cancelled,omitempty"`
}

// HistoryRequest is the data structure for the stateless history endpoint
type HistoryRequest struct {
	ReferenceDate string         `json:"reference_date" binding:"required"`
	WindowDays    int            `json:"window_days"`
	PastShifts    []Shift        `json:"past_shifts"`
	Templates     []TaskTemplate `json:"templates"`
	PersonIDs     []string       `json:"person_ids"`
}

// AssignRequest is the body of a manual assignment
type AssignRequest struct {
	PersonID string `json:"person_id" binding:"required"`
}

// AssignResponse is returned when a manual assignment is accepted
type AssignResponse struct {
	Shift Shift `json:"shift"`
}

// RejectionResponse is returned when a manual assignment is refused
type RejectionResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}
