// Package domain holds shared domain primitives: typed record IDs and the
// enumerations that cross module boundaries.
//
// IDs are distinct types over uuid.UUID so an NCR id can never be passed where
// a CAPA id is expected. Construct from external input via the ParseX
// functions, which enforce the "valid, non-empty, non-nil UUID" invariant at
// trust boundaries; direct casting bypasses validation and is reserved for
// internal construction from uuid.New().
package domain

import (
	"github.com/google/uuid"

	dErrors "conforma/pkg/domain-errors"
)

// NCRID identifies a nonconformance report.
type NCRID uuid.UUID

// MRBID identifies a natively created material review board record. Virtual
// board entries projected from NCRs use the "mrb-" prefixed form instead and
// never carry an MRBID.
type MRBID uuid.UUID

// CAPAID identifies a corrective/preventive action record.
type CAPAID uuid.UUID

// NewNCRID returns a fresh random NCR id.
func NewNCRID() NCRID { return NCRID(uuid.New()) }

// NewMRBID returns a fresh random MRB id.
func NewMRBID() MRBID { return MRBID(uuid.New()) }

// NewCAPAID returns a fresh random CAPA id.
func NewCAPAID() CAPAID { return CAPAID(uuid.New()) }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s id", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be nil", kind)
	}
	return u, nil
}

// ParseNCRID constructs an NCRID from external input.
func ParseNCRID(s string) (NCRID, error) {
	u, err := parseUUID(s, "ncr")
	if err != nil {
		return NCRID{}, err
	}
	return NCRID(u), nil
}

// ParseMRBID constructs an MRBID from external input.
func ParseMRBID(s string) (MRBID, error) {
	u, err := parseUUID(s, "mrb")
	if err != nil {
		return MRBID{}, err
	}
	return MRBID(u), nil
}

// ParseCAPAID constructs a CAPAID from external input.
func ParseCAPAID(s string) (CAPAID, error) {
	u, err := parseUUID(s, "capa")
	if err != nil {
		return CAPAID{}, err
	}
	return CAPAID(u), nil
}

func (id NCRID) String() string { return uuid.UUID(id).String() }
func (id NCRID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id MRBID) String() string { return uuid.UUID(id).String() }
func (id MRBID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CAPAID) String() string { return uuid.UUID(id).String() }
func (id CAPAID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps the canonical UUID form on the wire and in JSONB
// documents. Defined per type because methods do not cross defined-type
// boundaries.

func (id NCRID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *NCRID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = NCRID(u)
	return nil
}

func (id MRBID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *MRBID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = MRBID(u)
	return nil
}

func (id CAPAID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CAPAID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = CAPAID(u)
	return nil
}
