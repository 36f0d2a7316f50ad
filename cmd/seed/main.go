package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/walkin-scheduling/internal/config"
	"github.com/clinicdesk/walkin-scheduling/internal/db"
	"github.com/clinicdesk/walkin-scheduling/internal/patient"
	"github.com/clinicdesk/walkin-scheduling/internal/schedule"
)

const (
	providerCount = 4
	patientCount  = 200
	scheduleDays  = 7
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	providers := make([]string, 0, providerCount)
	for i := 0; i < providerCount; i++ {
		providers = append(providers, "Dr. "+gofakeit.LastName())
	}

	if cfg.StorageBackend == config.BackendPostgres {
		if err := seedPostgres(cfg, providers); err != nil {
			log.Fatalf("seed postgres: %v", err)
		}
	} else {
		if err := seedFiles(cfg, providers); err != nil {
			log.Fatalf("seed files: %v", err)
		}
	}

	log.Println("seed complete")
}

func fakePatient(providers []string) patient.Patient {
	dob := gofakeit.DateRange(
		time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC))
	return patient.Patient{
		ID:                patient.NewPatientID(),
		Name:              gofakeit.Name(),
		DOB:               dob.Format("2006-01-02"),
		Gender:            gofakeit.Gender(),
		Email:             gofakeit.Email(),
		Phone:             gofakeit.Phone(),
		Address:           gofakeit.Street(),
		City:              gofakeit.City(),
		State:             gofakeit.StateAbr(),
		Zip:               gofakeit.Zip(),
		PrimaryInsurer:    gofakeit.Company(),
		MemberID:          gofakeit.LetterN(2) + gofakeit.DigitN(7),
		GroupNo:           gofakeit.DigitN(5),
		PreferredProvider: providers[gofakeit.Number(0, len(providers)-1)],
		IsReturning:       true,
		LastVisit:         gofakeit.DateRange(time.Now().AddDate(-2, 0, 0), time.Now()).Format("2006-01-02"),
	}
}

// providerTable fills each working day with alternating 30 and 60 minute
// slots from 09:00 to 17:00.
func providerTable(provider string) []schedule.Slot {
	var slots []schedule.Slot
	base := time.Now()
	for day := 0; day < scheduleDays; day++ {
		date := base.AddDate(0, 0, day).Format("2006-01-02")
		cursor := time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC)
		end := time.Date(2000, 1, 1, 17, 0, 0, 0, time.UTC)
		for cursor.Before(end) {
			minutes := 30
			if gofakeit.Bool() {
				minutes = 60
			}
			next := cursor.Add(time.Duration(minutes) * time.Minute)
			if next.After(end) {
				break
			}
			status := schedule.SlotAvailable
			// a sprinkle of pre-booked slots makes conflict paths reachable
			if gofakeit.Number(0, 9) == 0 {
				status = schedule.SlotBooked
			}
			slots = append(slots, schedule.Slot{
				Provider: provider,
				Date:     date,
				Start:    cursor.Format("15:04"),
				End:      next.Format("15:04"),
				Minutes:  minutes,
				Status:   status,
			})
			cursor = next
		}
	}
	return slots
}

func seedFiles(cfg config.Config, providers []string) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	log.Printf("seeding %d patients into %s", patientCount, cfg.PatientsPath())
	store, err := patient.NewFileStore(cfg.PatientsPath(), nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for i := 0; i < patientCount; i++ {
		if err := store.Append(ctx, fakePatient(providers)); err != nil {
			return err
		}
	}

	for _, provider := range providers {
		slots := providerTable(provider)
		if err := schedule.WriteProviderTable(cfg.SchedulesDir(), provider, slots); err != nil {
			return err
		}
		log.Printf("seeded %d slots for %s", len(slots), provider)
	}
	return nil
}

func seedPostgres(cfg config.Config, providers []string) error {
	if err := db.RunMigrations(cfg.PostgresDSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := seedPgPatients(context.Background(), pool, providers); err != nil {
		return err
	}
	return seedPgSlots(context.Background(), pool, providers)
}

func seedPgPatients(ctx context.Context, pool *pgxpool.Pool, providers []string) error {
	log.Printf("seeding %d patients", patientCount)

	const batchSize = 50
	for offset := 0; offset < patientCount; offset += batchSize {
		end := offset + batchSize
		if end > patientCount {
			end = patientCount
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		for i := offset; i < end; i++ {
			p := fakePatient(providers)
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (patient_id, name, dob, gender, email, phone,
					address, city, state, zip, primary_insurer, member_id, group_no,
					preferred_provider, is_returning, last_visit_date)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			`, p.ID, p.Name, p.DOB, p.Gender, p.Email, p.Phone,
				p.Address, p.City, p.State, p.Zip, p.PrimaryInsurer, p.MemberID, p.GroupNo,
				p.PreferredProvider, p.IsReturning, p.LastVisit)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		log.Printf("patients seeded: %d/%d", end, patientCount)
	}
	return nil
}

func seedPgSlots(ctx context.Context, pool *pgxpool.Pool, providers []string) error {
	for _, provider := range providers {
		slots := providerTable(provider)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		for _, s := range slots {
			_, err := tx.Exec(ctx, `
				INSERT INTO slots (provider, slot_date, start_time, end_time, slot_minutes, status)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (provider, slot_date, start_time, end_time) DO NOTHING
			`, s.Provider, s.Date, s.Start, s.End, s.Minutes, string(s.Status))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		log.Printf("seeded %d slots for %s", len(slots), provider)
	}
	return nil
}
