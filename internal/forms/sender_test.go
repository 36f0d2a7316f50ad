package forms

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSenderCopiesFormAndMetadata(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "intake_form.pdf")
	require.NoError(t, os.WriteFile(source, []byte("%PDF-1.4 intake"), 0o644))

	outDir := filepath.Join(dir, "forms_sent")
	s := NewDirSender(source, outDir)

	dest, err := s.SendForm(context.Background(), "jane@example.com", "APPT-1a2b3c4d")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "APPT-1a2b3c4d_intake.pdf"), dest)

	copied, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 intake", string(copied))

	blob, err := os.ReadFile(filepath.Join(outDir, "APPT-1a2b3c4d_meta.json"))
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(blob, &meta))
	assert.Equal(t, "jane@example.com", meta["patient_email"])
	assert.Equal(t, "APPT-1a2b3c4d", meta["appt_id"])
	assert.NotEmpty(t, meta["sent_at"])
}

func TestDirSenderMissingSource(t *testing.T) {
	dir := t.TempDir()
	s := NewDirSender(filepath.Join(dir, "nope.pdf"), filepath.Join(dir, "out"))

	_, err := s.SendForm(context.Background(), "jane@example.com", "APPT-1a2b3c4d")
	assert.ErrorIs(t, err, ErrSourceMissing)
}
