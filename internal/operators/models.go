package operators

import "time"

// Details is the operator record as returned by the directory. The data is
// untrusted: any field may be missing, in which case it is nil.
type Details struct {
	PilotID   *string    `json:"pilot_id,omitempty"`
	FirstName *string    `json:"first_name,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Email     *string    `json:"email,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Entry is a cached lookup outcome. Present is false when the directory did
// not know the drone or could not be reached.
type Entry struct {
	Present bool
	Details *Details
}

// Absent is the cached outcome of a failed lookup
var Absent = Entry{}
