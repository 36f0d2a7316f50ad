package patient

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

var fileHeader = []string{
	"patient_id", "name", "dob", "gender", "email", "phone",
	"address", "city", "state", "zip",
	"primary_insurer", "member_id", "group_no",
	"preferred_provider", "is_returning", "last_visit_date",
}

// FileStore keeps the registry in memory and mirrors every append to a flat
// CSV table. A missing or unreadable file degrades to an empty registry; only
// write failures are fatal.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	patients []Patient
}

func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileStore{path: path, logger: logger}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("initialize patient table: %w", err)
		}
		return s, nil
	}
	if err != nil {
		logger.Warn("patient table unreadable, starting empty", zap.String("path", path), zap.Error(err))
		return s, nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		logger.Warn("patient table corrupt, starting empty", zap.String("path", path), zap.Error(err))
		return s, nil
	}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		p, ok := rowToPatient(row)
		if !ok {
			logger.Warn("skipping malformed patient row", zap.Int("line", i+1))
			continue
		}
		s.patients = append(s.patients, p)
	}
	return s, nil
}

func (s *FileStore) All(ctx context.Context) ([]Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Patient, len(s.patients))
	copy(out, s.patients)
	return out, nil
}

func (s *FileStore) GetByID(ctx context.Context, id string) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.patients {
		if s.patients[i].ID == id {
			p := s.patients[i]
			return &p, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (s *FileStore) Append(ctx context.Context, p Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = append(s.patients, p)
	if err := s.save(); err != nil {
		s.patients = s.patients[:len(s.patients)-1]
		return err
	}
	return nil
}

// save rewrites the whole table through a temp file and rename, so a crash
// mid-write leaves the previous table intact.
func (s *FileStore) save() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".patients-*.csv")
	if err != nil {
		return fmt.Errorf("write patient table: %w", err)
	}
	w := csv.NewWriter(tmp)
	if err := w.Write(fileHeader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write patient table: %w", err)
	}
	for i := range s.patients {
		if err := w.Write(patientToRow(s.patients[i])); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("write patient table: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write patient table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write patient table: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write patient table: %w", err)
	}
	return nil
}

func patientToRow(p Patient) []string {
	return []string{
		p.ID, p.Name, p.DOB, p.Gender, p.Email, p.Phone,
		p.Address, p.City, p.State, p.Zip,
		p.PrimaryInsurer, p.MemberID, p.GroupNo,
		p.PreferredProvider, strconv.FormatBool(p.IsReturning), p.LastVisit,
	}
}

func rowToPatient(row []string) (Patient, bool) {
	if len(row) < len(fileHeader) || row[0] == "" {
		return Patient{}, false
	}
	returning, _ := strconv.ParseBool(row[14])
	return Patient{
		ID: row[0], Name: row[1], DOB: row[2], Gender: row[3],
		Email: row[4], Phone: row[5],
		Address: row[6], City: row[7], State: row[8], Zip: row[9],
		PrimaryInsurer: row[10], MemberID: row[11], GroupNo: row[12],
		PreferredProvider: row[13], IsReturning: returning, LastVisit: row[15],
	}, true
}
