package sqlite

import "time"

// SightingRecord is one archived report line for a violator
type SightingRecord struct {
	ID              int64     `json:"id"`
	Serial          string    `json:"serial"`
	ClosestDistance float64   `json:"closest_distance_mm"`
	Dist            string    `json:"dist"`
	LastSeen        time.Time `json:"last_seen"`
	Named           bool      `json:"named"`
	OperatorName    string    `json:"operator_name,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Email           string    `json:"email,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}
