package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k3rs/backend/internal/inspection"
)

func TestAssembleRecords(t *testing.T) {
	d := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	heads := []inspectionRow{
		{ID: "i1", Type: "Kebakaran", Date: &d},
		{ID: "i2", Type: "Kelistrikan"},
	}
	findings := []findingRow{
		{ID: "f1", InspectionID: "i1", Location: "Gudang"},
		{ID: "f2", InspectionID: "i1", Location: "Lorong"},
		{ID: "f3", InspectionID: "gone", Location: "Orphan"},
	}
	photos := []photoRow{
		{FindingID: "f1", URL: "https://s3.test/a"},
		{FindingID: "f1", URL: "https://s3.test/b"},
		{FindingID: "f9", URL: "https://s3.test/orphan"},
	}

	got := assembleRecords(heads, findings, photos)

	want := []inspection.Record{
		{
			ID:   "i1",
			Type: "Kebakaran",
			Date: inspection.NewDate(2025, time.March, 10),
			Findings: []inspection.Finding{
				{ID: "f1", Location: "Gudang", Photos: []inspection.Photo{{SignedURL: "https://s3.test/a"}, {SignedURL: "https://s3.test/b"}}},
				{ID: "f2", Location: "Lorong"},
			},
		},
		{ID: "i2", Type: "Kelistrikan"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assembled records (-want +got):\n%s", diff)
	}
}

func TestAssembleRecords_Empty(t *testing.T) {
	got := assembleRecords(nil, nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterWhere(t *testing.T) {
	where, args, err := Filter{}.where()
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args, err = Filter{Type: " Kebakaran ", Month: "2025-12"}.where()
	require.NoError(t, err)
	assert.Equal(t, "WHERE inspection_type = $1 AND inspection_date >= $2 AND inspection_date < $3", where)
	assert.Equal(t, []any{"Kebakaran", "2025-12-01", "2026-01-01"}, args)

	where, args, err = Filter{From: inspection.NewDate(2025, 1, 1), To: inspection.NewDate(2025, 1, 31)}.where()
	require.NoError(t, err)
	assert.Equal(t, "WHERE inspection_date >= $1 AND inspection_date <= $2", where)
	assert.Equal(t, []any{"2025-01-01", "2025-01-31"}, args)
}

func TestFilterWhere_Invalid(t *testing.T) {
	_, _, err := Filter{Month: "March"}.where()
	assert.ErrorContains(t, err, "YYYY-MM")

	_, _, err = Filter{From: inspection.NewDate(2025, 2, 1), To: inspection.NewDate(2025, 1, 1)}.where()
	assert.ErrorContains(t, err, "invalid range")
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapError(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}), ErrDuplicate)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "23503", ConstraintName: "findings_inspection_id_fkey"}), ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

func TestLockQueriesTakeRowLocks(t *testing.T) {
	for _, q := range []string{lockInspectionSQL, lockFindingSQL} {
		assert.True(t, strings.HasSuffix(q, "FOR UPDATE"), q)
		assert.Contains(t, q, "WHERE id = $1")
	}
}
