package repository

import "github.com/oklog/ulid/v2"

// newID returns a lexically sortable 26 character identifier.  ulid.Make
// uses a process-wide monotonic entropy source and is safe for
// concurrent use.
func newID() string {
	return ulid.Make().String()
}
