package models

import (
	"strings"

	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
)

// VirtualPrefix marks board ids that are projections of a report rather
// than stored records.
const VirtualPrefix = "mrb-"

// RefKind tags which side of the board a reference points at.
type RefKind string

const (
	RefNative  RefKind = "native"
	RefVirtual RefKind = "virtual"
)

// Ref is a resolved board reference. The virtual-or-native decision is made
// exactly once, at the boundary where the raw id arrives; everything
// downstream switches on Kind instead of re-inspecting strings.
type Ref struct {
	Kind RefKind

	// NCRID is set for virtual refs and names the backing report.
	NCRID domain.NCRID

	// MRBID is set for native refs.
	MRBID domain.MRBID
}

// IsVirtual reports whether the ref points at a projection.
func (r Ref) IsVirtual() bool {
	return r.Kind == RefVirtual
}

// ParseRef resolves a raw board id. Ids carrying the virtual prefix resolve
// to the backing report id; anything else must be a native record id.
//
// Errors: returns CodeInvalidInput when the id under the prefix is not a
// valid report id, or when a native id is not a valid record id.
func ParseRef(raw string) (Ref, error) {
	if rest, ok := strings.CutPrefix(raw, VirtualPrefix); ok {
		ncrID, err := domain.ParseNCRID(rest)
		if err != nil {
			return Ref{}, dErrors.New(dErrors.CodeInvalidInput, "invalid virtual board id")
		}
		return Ref{Kind: RefVirtual, NCRID: ncrID}, nil
	}
	mrbID, err := domain.ParseMRBID(raw)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Kind: RefNative, MRBID: mrbID}, nil
}
