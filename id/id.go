// Package id defines TypeID-based identifiers for persisted entities.
//
// Jobs, agent memory entries and the CRM records written by job bodies all
// carry a prefixed, K-sortable identifier in the form "prefix_suffix".
// Workspace and user identifiers are owned by the auth layer and stay plain
// strings.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for every entity that gets a generated ID.
const (
	PrefixJob      Prefix = "job"
	PrefixMemory   Prefix = "mem"
	PrefixThread   Prefix = "thr"
	PrefixMessage  Prefix = "msg"
	PrefixMeeting  Prefix = "mtg"
	PrefixCall     Prefix = "call"
	PrefixProspect Prefix = "pros"
	PrefixBrief    Prefix = "brief"
	PrefixPlan     Prefix = "plan"
	PrefixWorker   Prefix = "wkr"
)

// ID wraps a TypeID. The zero value is Nil.
//
//nolint:recvcheck // value receivers for reads, pointer receivers for decoding.
type ID struct {
	inner typeid.AnyID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix. It panics on an invalid
// prefix, which is a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.WithPrefix(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "job_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.FromString(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that it carries the expected prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for fixtures.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// ──────────────────────────────────────────────────
// Constructors and parsers
// ──────────────────────────────────────────────────

// JobID identifies a background job (prefix "job").
type JobID = ID

// NewJobID generates a new job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewWorkerID generates a worker pool identity. It is never persisted.
func NewWorkerID() ID { return New(PrefixWorker) }

// NewMemoryID generates a new agent memory entry ID.
func NewMemoryID() ID { return New(PrefixMemory) }

// NewThreadID generates a new email thread ID.
func NewThreadID() ID { return New(PrefixThread) }

// NewMessageID generates a new email message ID.
func NewMessageID() ID { return New(PrefixMessage) }

// NewMeetingID generates a new meeting ID.
func NewMeetingID() ID { return New(PrefixMeeting) }

// NewCallID generates a new call ID.
func NewCallID() ID { return New(PrefixCall) }

// NewProspectID generates a new prospect ID.
func NewProspectID() ID { return New(PrefixProspect) }

// NewBriefID generates a new research brief ID.
func NewBriefID() ID { return New(PrefixBrief) }

// NewPlanID generates a new growth plan ID.
func NewPlanID() ID { return New(PrefixPlan) }

// ParseJobID parses s and validates the "job" prefix.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseThreadID parses s and validates the "thr" prefix.
func ParseThreadID(s string) (ID, error) { return ParseWithPrefix(s, PrefixThread) }

// ParseProspectID parses s and validates the "pros" prefix.
func ParseProspectID(s string) (ID, error) { return ParseWithPrefix(s, PrefixProspect) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL for optional columns
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
