package patient

import (
	"context"
	"errors"
)

var ErrPatientNotFound = errors.New("patient not found")

// Store is the persistence boundary for the registry. Implementations must
// return records from All in insertion order, because the fuzzy matcher's
// tie-break depends on it, and must make Append durable before returning.
type Store interface {
	All(ctx context.Context) ([]Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	Append(ctx context.Context, p Patient) error
}
