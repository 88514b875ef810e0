// Package ids provides the opaque identifier types shared across the
// cognition core, backed by UUIDs the way codenerd generates session and
// shard ids.
package ids

import "github.com/google/uuid"

// Id is an opaque identifier used throughout the data model.
type Id string

// ProjectId scopes rows to a project; the empty string means "global".
type ProjectId = Id

// SessionId identifies a conversational thread.
type SessionId = Id

// New generates a fresh random id.
func New() Id {
	return Id(uuid.NewString())
}

// Empty reports whether the id is unset.
func (i Id) Empty() bool {
	return i == ""
}

func (i Id) String() string {
	return string(i)
}
