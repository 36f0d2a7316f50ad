package patient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.csv")

	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	p := Patient{
		ID: "P123ABC", Name: "Jane Doe", DOB: "1990-01-01",
		Email: "jane@x.com", Phone: "5551234567",
		PrimaryInsurer: "Acme Health", MemberID: "M-1", GroupNo: "G-9",
		PreferredProvider: "Dr. Lee", IsReturning: true,
	}
	require.NoError(t, store.Append(context.Background(), p))

	reloaded, err := NewFileStore(path, nil)
	require.NoError(t, err)
	all, err := reloaded.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, p, all[0])
}

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.csv")
	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	// the table file is created so later appends have a home
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStoreCorruptFileFallsBackToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.csv")
	require.NoError(t, os.WriteFile(path, []byte("\"unterminated,quote\nnot,a,csv"), 0o644))

	store, err := NewFileStore(path, nil)
	require.NoError(t, err, "corrupt storage must never be fatal on load")

	all, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStoreGetByID(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "patients.csv"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), Patient{ID: "P1", Name: "A"}))

	got, err := store.GetByID(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	_, err = store.GetByID(context.Background(), "P2")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}
