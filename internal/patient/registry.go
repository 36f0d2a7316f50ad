package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/clinicdesk/walkin-scheduling/internal/identity"
)

// Options tune the fuzzy matcher. The defaults are the values the clinic has
// run with; there is no derivation behind them, so they stay configurable.
type Options struct {
	Threshold  float64 // minimum combined score to accept a fuzzy match
	NameWeight float64
	DOBWeight  float64
}

func DefaultOptions() Options {
	return Options{Threshold: 0.65, NameWeight: 0.7, DOBWeight: 0.3}
}

// Registry resolves noisy walk-in descriptions against the patient store and
// owns the create lifecycle. Resolve is read-only; Create serializes writes so
// concurrent walk-ins cannot race an append.
type Registry struct {
	store  Store
	opts   Options
	logger *zap.Logger

	mu sync.Mutex // guards Create
}

func NewRegistry(store Store, opts Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Threshold <= 0 {
		opts = DefaultOptions()
	}
	return &Registry{store: store, opts: opts, logger: logger}
}

// Resolve matches the given identity fields against the registry:
//
//  1. exact normalized email, confidence 1.0
//  2. exact normalized phone, confidence 1.0
//  3. best fuzzy score NameWeight*nameSim + DOBWeight*dobBonus at or above
//     Threshold, first record at the maximum winning
//  4. otherwise a freshly constructed, unpersisted record with status "new"
//
// It never mutates the store, even when it fabricates a new-patient candidate.
func (r *Registry) Resolve(ctx context.Context, name, dob, phone, email string) (*Patient, MatchStatus, float64, error) {
	nameQ := identity.CleanText(name)
	emailQ := identity.Email(email)
	phoneQ := identity.Phone(phone)
	dobQ := identity.DOB(dob)

	patients, err := r.store.All(ctx)
	if err != nil {
		return nil, "", 0, fmt.Errorf("load registry: %w", err)
	}

	if emailQ != "" {
		for i := range patients {
			if identity.Email(patients[i].Email) == emailQ {
				p := patients[i]
				return &p, StatusReturning, 1.0, nil
			}
		}
	}

	if phoneQ != "" {
		for i := range patients {
			if identity.Phone(patients[i].Phone) == phoneQ {
				p := patients[i]
				return &p, StatusReturning, 1.0, nil
			}
		}
	}

	var best *Patient
	bestScore := 0.0
	for i := range patients {
		rowName := identity.CleanText(patients[i].Name)
		if rowName == "" && nameQ == "" {
			continue
		}
		score := r.combinedScore(nameQ, dobQ, rowName, identity.DOB(patients[i].DOB))
		// strict > keeps the first record at the maximum score
		if score > bestScore {
			bestScore = score
			best = &patients[i]
		}
	}

	if best != nil && bestScore >= r.opts.Threshold {
		p := *best
		return &p, StatusReturning, bestScore, nil
	}

	return newCandidate(name, dob, phone, email, ""), StatusNew, 0, nil
}

// Create assigns a fresh id, appends the record and persists it before
// returning. The new record is visible to subsequent Resolve calls.
func (r *Registry) Create(ctx context.Context, name, dob, phone, email, preferredProvider string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := newCandidate(name, dob, phone, email, preferredProvider)
	if err := r.store.Append(ctx, *p); err != nil {
		return nil, fmt.Errorf("persist patient: %w", err)
	}
	r.logger.Info("patient created",
		zap.String("patient_id", p.ID),
		zap.String("preferred_provider", preferredProvider))
	return p, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*Patient, error) {
	return r.store.GetByID(ctx, id)
}

// Candidate is a scored registry entry, used by the resolve-preview endpoint
// to inspect why the matcher decided the way it did.
type Candidate struct {
	PatientID string  `json:"patient_id"`
	Name      string  `json:"name"`
	DOB       string  `json:"dob"`
	NameScore float64 `json:"name_score"`
	Combined  float64 `json:"combined"`
}

// Candidates returns the top-k entries by combined score.
func (r *Registry) Candidates(ctx context.Context, name, dob string, topK int) ([]Candidate, error) {
	nameQ := identity.CleanText(name)
	dobQ := identity.DOB(dob)

	patients, err := r.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	cands := make([]Candidate, 0, len(patients))
	for i := range patients {
		rowName := identity.CleanText(patients[i].Name)
		nameScore := nameSimilarity(nameQ, rowName)
		cands = append(cands, Candidate{
			PatientID: patients[i].ID,
			Name:      patients[i].Name,
			DOB:       identity.DOB(patients[i].DOB),
			NameScore: nameScore,
			Combined:  r.combinedScore(nameQ, dobQ, rowName, identity.DOB(patients[i].DOB)),
		})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Combined > cands[j].Combined })
	if topK > 0 && len(cands) > topK {
		cands = cands[:topK]
	}
	return cands, nil
}

func (r *Registry) combinedScore(nameQ, dobQ, rowName, rowDOB string) float64 {
	nameScore := nameSimilarity(nameQ, rowName)
	dobScore := 0.0
	if dobQ != "" && rowDOB == dobQ {
		dobScore = 1.0
	}
	return r.opts.NameWeight*nameScore + r.opts.DOBWeight*dobScore
}

// nameSimilarity is a normalized sequence similarity in [0,1] over runes.
func nameSimilarity(a, b string) float64 {
	if a == "" {
		return 0
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

func newCandidate(name, dob, phone, email, preferredProvider string) *Patient {
	isoDOB := identity.DOB(dob)
	if isoDOB == "" {
		isoDOB = strings.TrimSpace(dob)
	}
	return &Patient{
		ID:                NewPatientID(),
		Name:              name,
		DOB:               isoDOB,
		Email:             email,
		Phone:             phone,
		PreferredProvider: preferredProvider,
	}
}
