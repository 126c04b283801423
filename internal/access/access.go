// Package access defines project access levels and the pure decision
// function every protocol handler consults before mutating anything.
package access

// Level is a user's permission for one project, as stored in the database.
type Level string

const (
	// LevelAdmin grants full permissions, including user management.
	LevelAdmin Level = "ADMIN"
	// LevelContributor grants read and write access to project files.
	LevelContributor Level = "CONTRIBUTOR"
	// LevelReadOnly grants viewing access only.
	LevelReadOnly Level = "READ_ONLY"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelAdmin, LevelContributor, LevelReadOnly:
		return true
	}
	return false
}

// Capability is the class of operation a handler is about to perform.
type Capability int

const (
	// CapabilityRead covers viewing buffers and project metadata.
	CapabilityRead Capability = iota
	// CapabilityWrite covers every buffer or filesystem mutation.
	CapabilityWrite
	// CapabilityAdmin covers project membership and ownership changes.
	CapabilityAdmin
)

// Decide reports whether an operation requiring cap may proceed for a
// caller whose authentication result and access level are given. A failed
// authentication denies regardless of level. Decide is consulted on every
// request, even for files the caller already has open, so that revoking
// access takes effect mid-session.
func Decide(authenticated bool, level Level, cap Capability) bool {
	if !authenticated {
		return false
	}
	switch cap {
	case CapabilityRead:
		return level.Valid()
	case CapabilityWrite:
		return level == LevelAdmin || level == LevelContributor
	case CapabilityAdmin:
		return level == LevelAdmin
	}
	return false
}
