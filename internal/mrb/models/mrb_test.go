package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncrModels "conforma/internal/ncr/models"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
)

var feb6 = time.Date(2025, 2, 6, 14, 5, 0, 0, time.UTC)

func TestParseRef(t *testing.T) {
	ncrID := domain.NewNCRID()
	ref, err := ParseRef("mrb-" + ncrID.String())
	require.NoError(t, err)
	assert.Equal(t, RefVirtual, ref.Kind)
	assert.True(t, ref.IsVirtual())
	assert.Equal(t, ncrID, ref.NCRID)

	mrbID := domain.NewMRBID()
	ref, err = ParseRef(mrbID.String())
	require.NoError(t, err)
	assert.Equal(t, RefNative, ref.Kind)
	assert.False(t, ref.IsVirtual())
	assert.Equal(t, mrbID, ref.MRBID)

	_, err = ParseRef("mrb-not-a-uuid")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseRef("not-a-uuid")
	require.Error(t, err)
}

func TestNewMRB(t *testing.T) {
	ncrID := domain.NewNCRID()
	m, err := NewMRB(domain.NewMRBID(), CreateInput{
		Title:       "Weekly board session",
		SourceNCRID: &ncrID,
	}, feb6)
	require.NoError(t, err)

	assert.Equal(t, "MRB-20250206-1405", m.Number)
	assert.Equal(t, StatusOpen, m.Status)
	assert.NotNil(t, m.LinkedNCRIDs)
	assert.Empty(t, m.LinkedNCRIDs)
	assert.EqualValues(t, 1, m.Version)
	assert.False(t, m.IsDeleted())
	assert.True(t, m.BacksNCR(ncrID))
	assert.False(t, m.BacksNCR(domain.NewNCRID()))
}

func TestResetTargetsDeduplicates(t *testing.T) {
	source := domain.NewNCRID()
	other := domain.NewNCRID()
	m, err := NewMRB(domain.NewMRBID(), CreateInput{
		SourceNCRID:  &source,
		LinkedNCRIDs: []domain.NCRID{source, other, other},
	}, feb6)
	require.NoError(t, err)

	assert.Equal(t, []domain.NCRID{source, other}, m.ResetTargets())
}

func TestSoftDeleteAndClosure(t *testing.T) {
	m, err := NewMRB(domain.NewMRBID(), CreateInput{Title: "Board session"}, feb6)
	require.NoError(t, err)

	m.ApplyClosure(feb6.Add(time.Hour))
	assert.Equal(t, StatusClosed, m.Status)

	m.ApplySoftDelete(feb6.Add(2 * time.Hour))
	assert.True(t, m.IsDeleted())
	require.NotNil(t, m.DeletedAt)
	assert.Equal(t, feb6.Add(2*time.Hour), *m.DeletedAt)
}

func TestProjectNCR(t *testing.T) {
	n, err := ncrModels.NewNCR(domain.NewNCRID(), ncrModels.CreateInput{
		Title:    "Bent mounting flange",
		Severity: domain.SeverityMajor,
		Area:     "Receiving",
	}, feb6)
	require.NoError(t, err)
	require.NoError(t, n.Escalate("qa.lead", feb6.Add(time.Hour)))

	v := ProjectNCR(n)
	assert.Equal(t, "mrb-"+n.ID.String(), v.ID)
	assert.Equal(t, "MRB-20250206-1405", v.Number)
	assert.Equal(t, "pending_disposition", v.Status, "virtual status mirrors the report")
	assert.Equal(t, SourceTypeNCR, v.SourceType)
	assert.Equal(t, n.ID.String(), v.SourceID)
	assert.True(t, v.Virtual)
	require.NotNil(t, v.Disposition)

	// The projection is a snapshot, not a window into the report
	v.Disposition.Justification = "mutated"
	assert.Empty(t, n.Disposition.Justification)
}

func TestProjectNCR_GeneratesNumberWhenAbsent(t *testing.T) {
	n, err := ncrModels.NewNCR(domain.NewNCRID(), ncrModels.CreateInput{
		Title:    "Bent mounting flange",
		Severity: domain.SeverityMinor,
	}, feb6)
	require.NoError(t, err)
	require.NoError(t, n.Escalate("qa.lead", feb6))
	n.MRBNumber = ""

	v := ProjectNCR(n)
	assert.Equal(t, "MRB-20250206-1405", v.Number)
}

func TestFromMRB(t *testing.T) {
	source := domain.NewNCRID()
	linked := domain.NewNCRID()
	m, err := NewMRB(domain.NewMRBID(), CreateInput{
		Title:        "Board session",
		SourceNCRID:  &source,
		LinkedNCRIDs: []domain.NCRID{linked},
	}, feb6)
	require.NoError(t, err)

	v := FromMRB(m)
	assert.Equal(t, m.ID.String(), v.ID)
	assert.Equal(t, "open", v.Status)
	assert.Equal(t, SourceTypeNCR, v.SourceType)
	assert.Equal(t, source.String(), v.SourceID)
	assert.Equal(t, []string{linked.String()}, v.LinkedNCRIDs)
	assert.False(t, v.Virtual)
	assert.Nil(t, v.Disposition)
}

func TestFromMRB_NoSource(t *testing.T) {
	m, err := NewMRB(domain.NewMRBID(), CreateInput{Title: "Board session"}, feb6)
	require.NoError(t, err)

	v := FromMRB(m)
	assert.Empty(t, v.SourceType)
	assert.Empty(t, v.SourceID)
	assert.Empty(t, v.LinkedNCRIDs)
}

func TestMRBCloneIsDeep(t *testing.T) {
	source := domain.NewNCRID()
	m, err := NewMRB(domain.NewMRBID(), CreateInput{
		SourceNCRID:  &source,
		LinkedNCRIDs: []domain.NCRID{domain.NewNCRID()},
	}, feb6)
	require.NoError(t, err)

	clone := m.Clone()
	*clone.SourceNCRID = domain.NewNCRID()
	clone.LinkedNCRIDs[0] = domain.NewNCRID()

	assert.Equal(t, source, *m.SourceNCRID)
	assert.NotEqual(t, clone.LinkedNCRIDs[0], m.LinkedNCRIDs[0])
}
