package patient

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, seed ...Patient) (*Registry, *FileStore) {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "patients.csv"), nil)
	require.NoError(t, err)
	for _, p := range seed {
		require.NoError(t, store.Append(context.Background(), p))
	}
	return NewRegistry(store, DefaultOptions(), nil), store
}

func TestResolveExactEmailIgnoresNameNoise(t *testing.T) {
	reg, _ := newTestRegistry(t, Patient{
		ID: "P000001", Name: "Jane Doe", DOB: "1990-01-01",
		Email: "jane@x.com", Phone: "555-123-4567",
	})

	p, status, score, err := reg.Resolve(context.Background(), "Jxne Dxx", "1980-12-31", "", "JANE@X.COM ")
	require.NoError(t, err)
	assert.Equal(t, StatusReturning, status)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, "P000001", p.ID)
}

func TestResolveExactPhoneAnyFormatting(t *testing.T) {
	reg, _ := newTestRegistry(t, Patient{
		ID: "P000002", Name: "Jane Doe", Phone: "5551234567",
	})

	for _, phone := range []string{"555-123-4567", "(555) 123 4567", "555.123.4567"} {
		p, status, score, err := reg.Resolve(context.Background(), "", "", phone, "")
		require.NoError(t, err)
		assert.Equal(t, StatusReturning, status, "phone %q", phone)
		assert.Equal(t, 1.0, score)
		assert.Equal(t, "P000002", p.ID)
	}
}

func TestResolveFuzzyNameWithDOBBonus(t *testing.T) {
	reg, _ := newTestRegistry(t,
		Patient{ID: "P000003", Name: "Jonathan Smith", DOB: "1985-06-15"},
		Patient{ID: "P000004", Name: "Maria Garcia", DOB: "1992-03-02"},
	)

	// a typo'd name plus the right DOB should clear the threshold
	p, status, score, err := reg.Resolve(context.Background(), "Jonathon Smith", "1985-06-15", "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusReturning, status)
	assert.Equal(t, "P000003", p.ID)
	assert.GreaterOrEqual(t, score, 0.65)
	assert.LessOrEqual(t, score, 1.0)
}

func TestResolveBelowThresholdReturnsNew(t *testing.T) {
	reg, _ := newTestRegistry(t, Patient{ID: "P000005", Name: "Jonathan Smith", DOB: "1985-06-15"})

	p, status, score, err := reg.Resolve(context.Background(), "Zzyzx Qwerty", "2000-01-01", "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusNew, status)
	assert.Equal(t, 0.0, score)
	assert.NotEmpty(t, p.ID)
	assert.NotEqual(t, "P000005", p.ID)
}

func TestResolveTieBreakFirstInInsertionOrder(t *testing.T) {
	// two identical candidates: the one appended first must win
	reg, _ := newTestRegistry(t,
		Patient{ID: "P00000A", Name: "Sam Jones", DOB: "1970-01-01"},
		Patient{ID: "P00000B", Name: "Sam Jones", DOB: "1970-01-01"},
	)

	p, status, _, err := reg.Resolve(context.Background(), "Sam Jones", "1970-01-01", "", "")
	require.NoError(t, err)
	assert.Equal(t, StatusReturning, status)
	assert.Equal(t, "P00000A", p.ID)
}

func TestResolveIsIdempotentAndReadOnly(t *testing.T) {
	reg, store := newTestRegistry(t, Patient{ID: "P000006", Name: "Jane Doe"})

	_, status1, score1, err := reg.Resolve(context.Background(), "Brand New", "1999-09-09", "", "")
	require.NoError(t, err)
	_, status2, score2, err := reg.Resolve(context.Background(), "Brand New", "1999-09-09", "", "")
	require.NoError(t, err)

	assert.Equal(t, status1, status2)
	assert.Equal(t, score1, score2)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1, "resolve must not persist anything")
}

func TestCreateIsVisibleToResolve(t *testing.T) {
	reg, _ := newTestRegistry(t)

	created, err := reg.Create(context.Background(), "Jane Doe", "1990-01-01", "555-123-4567", "jane@x.com", "Dr. Lee")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "1990-01-01", created.DOB)

	p, status, score, err := reg.Resolve(context.Background(), "", "", "", "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, StatusReturning, status)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, created.ID, p.ID)

	got, err := reg.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Lee", got.PreferredProvider)
}

func TestCandidatesRankedByCombinedScore(t *testing.T) {
	reg, _ := newTestRegistry(t,
		Patient{ID: "P1", Name: "Alice Brown", DOB: "1990-01-01"},
		Patient{ID: "P2", Name: "Alicia Browne", DOB: "1991-02-02"},
		Patient{ID: "P3", Name: "Bob White", DOB: "1990-01-01"},
	)

	cands, err := reg.Candidates(context.Background(), "Alice Brown", "1990-01-01", 2)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "P1", cands[0].PatientID)
	assert.GreaterOrEqual(t, cands[0].Combined, cands[1].Combined)
}

func TestNewPatientIDShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewPatientID()
		assert.Len(t, id, 7)
		assert.Equal(t, byte('P'), id[0])
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
