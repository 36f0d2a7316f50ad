// Package forms distributes the intake document after a booking confirms.
// Distribution is simulated by copying the source PDF into a per-appointment
// outbox alongside a metadata record.
package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrSourceMissing means the intake document itself is absent. The
// coordinator surfaces this but does not fail the booking over it.
var ErrSourceMissing = errors.New("intake form source document missing")

// Sender is the form-distribution collaborator contract.
type Sender interface {
	SendForm(ctx context.Context, patientEmail, apptID string) (string, error)
}

// DirSender copies the intake PDF into outDir as <appt>_intake.pdf and writes
// a sibling metadata JSON.
type DirSender struct {
	sourcePDF string
	outDir    string
	now       func() time.Time
}

func NewDirSender(sourcePDF, outDir string) *DirSender {
	return &DirSender{sourcePDF: sourcePDF, outDir: outDir, now: time.Now}
}

func (s *DirSender) SendForm(ctx context.Context, patientEmail, apptID string) (string, error) {
	src, err := os.Open(s.sourcePDF)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSourceMissing
		}
		return "", fmt.Errorf("open intake form: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create forms outbox: %w", err)
	}

	dest := filepath.Join(s.outDir, apptID+"_intake.pdf")
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create form copy: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy intake form: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("copy intake form: %w", err)
	}

	meta := map[string]string{
		"appt_id":       apptID,
		"patient_email": patientEmail,
		"sent_at":       s.now().UTC().Format(time.RFC3339),
		"file":          dest,
	}
	blob, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode form metadata: %w", err)
	}
	metaPath := filepath.Join(s.outDir, apptID+"_meta.json")
	if err := os.WriteFile(metaPath, blob, 0o644); err != nil {
		return "", fmt.Errorf("write form metadata: %w", err)
	}

	return dest, nil
}
