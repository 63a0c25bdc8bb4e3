package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vlad-Pos/MedFlow-sub004/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dsn, 4)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	providers, err := seedProviders(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, 500)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedBookings(context.Background(), pool, providers, patients, 2000); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, specialty)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedBookings(ctx context.Context, pool *pgxpool.Pool, providers, patients []uuid.UUID, count int) error {
	log.Printf("seeding %d bookings", count)

	statuses := []string{"scheduled", "scheduled", "confirmed", "confirmed", "completed", "cancelled", "no-show"}
	durations := []int{15, 30, 30, 45, 60}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now().Truncate(24 * time.Hour)

	for i := 0; i < count; i++ {
		provider := providers[gofakeit.Number(0, len(providers)-1)]
		patient := patients[gofakeit.Number(0, len(patients)-1)]

		// Working hours, spread across two weeks either side of today.
		day := today.AddDate(0, 0, gofakeit.Number(-14, 14))
		hour := gofakeit.Number(9, 16)
		minute := []int{0, 30}[gofakeit.Number(0, 1)]
		start := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)

		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (
				id, provider_id, patient_id, patient_name, start_time, duration_minutes,
				status, notes, email, phone, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		`,
			uuid.New(), provider, patient, gofakeit.Name(), start,
			durations[gofakeit.Number(0, len(durations)-1)],
			statuses[gofakeit.Number(0, len(statuses)-1)],
			gofakeit.Sentence(6),
			gofakeit.Email(),
			gofakeit.Phone(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
