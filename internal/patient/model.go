package patient

import (
	"strings"

	"github.com/google/uuid"
)

// Patient is one registry record. A record may be incomplete: walk-ins created
// mid-booking carry empty insurance fields until the front desk fills them in.
type Patient struct {
	ID                string
	Name              string
	DOB               string // ISO-8601 when parsable, otherwise as entered
	Gender            string
	Email             string
	Phone             string
	Address           string
	City              string
	State             string
	Zip               string
	PrimaryInsurer    string
	MemberID          string
	GroupNo           string
	PreferredProvider string
	IsReturning       bool
	LastVisit         string
}

// MatchStatus tells the caller whether Resolve found an existing record.
type MatchStatus string

const (
	StatusNew       MatchStatus = "new"
	StatusReturning MatchStatus = "returning"
)

// NewPatientID mints an id like "P3F9A1C". IDs are immutable once assigned and
// never reused.
func NewPatientID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "P" + strings.ToUpper(hex[:6])
}
