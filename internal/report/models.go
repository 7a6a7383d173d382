package report

import (
	"encoding/json"
	"time"
)

// Placeholders for operator fields missing from directory data
const (
	NamePlaceholder    = "N/A"
	ContactPlaceholder = "not given"
)

// Entry is one violator in the published report
type Entry struct {
	ID    string `json:"id"`
	Dist  string `json:"dist"`
	Seen  string `json:"seen"`
	Named bool   `json:"named"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`

	ClosestDistance float64   `json:"-"`
	LastSeen        time.Time `json:"-"`
}

type unnamedEntry struct {
	ID    string `json:"id"`
	Dist  string `json:"dist"`
	Seen  string `json:"seen"`
	Named bool   `json:"named"`
}

type namedEntry struct {
	unnamedEntry
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// MarshalJSON writes the operator keys for named entries only, even when
// the directory gave empty strings for them
func (e Entry) MarshalJSON() ([]byte, error) {
	base := unnamedEntry{ID: e.ID, Dist: e.Dist, Seen: e.Seen, Named: e.Named}
	if !e.Named {
		return json.Marshal(base)
	}
	return json.Marshal(namedEntry{unnamedEntry: base, Name: e.Name, Phone: e.Phone, Email: e.Email})
}

// Report is the full list of current violators, most recently seen first
type Report struct {
	GeneratedAt time.Time
	Entries     []Entry
}

// MarshalJSON encodes the report as a bare array of entries, the format the
// presentation layer polls for
func (r *Report) MarshalJSON() ([]byte, error) {
	entries := r.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON is the inverse of MarshalJSON. GeneratedAt is not recovered.
func (r *Report) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Entries)
}

// Named returns how many entries have operator attribution
func (r *Report) Named() int {
	n := 0
	for _, e := range r.Entries {
		if e.Named {
			n++
		}
	}
	return n
}
