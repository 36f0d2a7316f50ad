package schedule

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var tableHeader = []string{"date", "start_time", "end_time", "slot_length", "status"}

// FileStore loads one CSV slot table per provider from a directory
// ("Dr. Lee.csv" holds Dr. Lee's table) and keeps them in memory. Claims flip
// the in-memory status and rewrite the provider's table before returning, all
// under the store mutex, so two concurrent claims cannot both win.
type FileStore struct {
	dir    string
	logger *zap.Logger

	mu        sync.Mutex
	providers []string
	tables    map[string][]Slot
}

func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileStore{dir: dir, logger: logger, tables: map[string][]Slot{}}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		logger.Warn("schedule directory missing, starting with no providers", zap.String("dir", dir))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schedule directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		provider := strings.TrimSuffix(e.Name(), ".csv")
		slots := s.loadTable(provider, filepath.Join(dir, e.Name()))
		s.providers = append(s.providers, provider)
		s.tables[provider] = slots
	}
	sort.Strings(s.providers)
	return s, nil
}

// loadTable reads one provider table. A corrupt file degrades to an empty
// table; rows that fail validation are rejected, not defaulted.
func (s *FileStore) loadTable(provider, path string) []Slot {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("slot table unreadable, treating as empty",
			zap.String("provider", provider), zap.Error(err))
		return nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		s.logger.Warn("slot table corrupt, treating as empty",
			zap.String("provider", provider), zap.Error(err))
		return nil
	}

	var slots []Slot
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		slot, err := rowToSlot(provider, row)
		if err != nil {
			s.logger.Warn("rejecting malformed slot row",
				zap.String("provider", provider), zap.Int("line", i+1), zap.Error(err))
			continue
		}
		slots = append(slots, slot)
	}
	return slots
}

func (s *FileStore) Providers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.providers))
	copy(out, s.providers)
	return out, nil
}

func (s *FileStore) SlotsOn(ctx context.Context, provider, date string) ([]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Slot
	for _, slot := range s.tables[provider] {
		if slot.Date == date && slot.Status == SlotAvailable {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *FileStore) OpenSlots(ctx context.Context, provider string) ([]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Slot
	for _, slot := range s.tables[provider] {
		if slot.Status == SlotAvailable {
			out = append(out, slot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (s *FileStore) Claim(ctx context.Context, provider string, key SlotKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[provider]
	if !ok {
		return ErrSlotConflict
	}
	for i := range table {
		if table[i].Key() != key {
			continue
		}
		if table[i].Status != SlotAvailable {
			return ErrSlotConflict
		}
		table[i].Status = SlotBooked
		if err := s.saveTable(provider); err != nil {
			table[i].Status = SlotAvailable
			return err
		}
		return nil
	}
	return ErrSlotConflict
}

func (s *FileStore) saveTable(provider string) error {
	return WriteProviderTable(s.dir, provider, s.tables[provider])
}

// WriteProviderTable writes a provider's full slot table through a temp file
// and rename. Seeding uses it to lay down fresh tables; the store uses it to
// persist claims.
func WriteProviderTable(dir, provider string, slots []Slot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write slot table: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".slots-*.csv")
	if err != nil {
		return fmt.Errorf("write slot table: %w", err)
	}
	w := csv.NewWriter(tmp)
	rows := [][]string{tableHeader}
	for _, slot := range slots {
		rows = append(rows, []string{
			slot.Date, slot.Start, slot.End,
			strconv.Itoa(slot.Minutes), string(slot.Status),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write slot table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write slot table: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, provider+".csv")); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write slot table: %w", err)
	}
	return nil
}

func rowToSlot(provider string, row []string) (Slot, error) {
	if len(row) < len(tableHeader) {
		return Slot{}, fmt.Errorf("expected %d fields, got %d", len(tableHeader), len(row))
	}
	if _, err := time.Parse("2006-01-02", row[0]); err != nil {
		return Slot{}, fmt.Errorf("bad date %q", row[0])
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil || minutes <= 0 {
		return Slot{}, fmt.Errorf("bad slot length %q", row[3])
	}
	status, err := ParseStatus(row[4])
	if err != nil {
		return Slot{}, err
	}
	return Slot{
		Provider: provider,
		Date:     row[0],
		Start:    strings.TrimSpace(row[1]),
		End:      strings.TrimSpace(row[2]),
		Minutes:  minutes,
		Status:   status,
	}, nil
}
