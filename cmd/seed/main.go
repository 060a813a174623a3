package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencare/treatment-booking/internal/db"
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

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	practitioners, err := seedPractitioners(seedCtx, pool, 40)
	if err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	if err := seedPatients(seedCtx, pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	treatments, err := seedTreatments(seedCtx, pool)
	if err != nil {
		log.Fatalf("seed treatments: %v", err)
	}
	if err := seedOffers(seedCtx, pool, practitioners, treatments); err != nil {
		log.Fatalf("seed offers: %v", err)
	}

	log.Println("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d practitioners", count)

	specialties := []string{
		"Physiotherapy",
		"Dermatology",
		"General Practice",
		"Orthopedics",
		"Nutrition",
		"Psychology",
		"Speech Therapy",
		"Occupational Therapy",
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := pool.Exec(ctx, `
			INSERT INTO practitioners (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, gofakeit.Name(), specialty)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return err
		}
	}

	return nil
}

func seedTreatments(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	names := []string{
		"Initial assessment",
		"Follow-up consultation",
		"Manual therapy session",
		"Rehabilitation exercise plan",
		"Posture evaluation",
		"Sports injury treatment",
		"Relaxation massage",
	}
	log.Printf("seeding %d treatments", len(names))

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO treatments (id, name, description, created_at)
			VALUES ($1, $2, $3, now())
		`, id, name, gofakeit.Sentence(12))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func seedOffers(ctx context.Context, pool *pgxpool.Pool, practitioners, treatments []uuid.UUID) error {
	log.Printf("seeding offers for %d practitioners", len(practitioners))

	durations := []int{30, 45, 60, 90}
	today := time.Now().Truncate(24 * time.Hour)

	for _, practitionerID := range practitioners {
		// Each practitioner publishes one or two offers.
		offerCount := gofakeit.Number(1, 2)
		for i := 0; i < offerCount; i++ {
			offerID := uuid.New()
			treatmentID := treatments[gofakeit.Number(0, len(treatments)-1)]
			duration := durations[gofakeit.Number(0, len(durations)-1)]

			_, err := pool.Exec(ctx, `
				INSERT INTO treatment_offers
					(id, practitioner_id, treatment_id, requirements, duration_minutes,
					 offer_start, offer_end, max_cases, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			`, offerID, practitionerID, treatmentID, gofakeit.Sentence(8), duration,
				today, today.AddDate(0, 2, 0), gofakeit.Number(5, 25))
			if err != nil {
				return err
			}

			// Two or three recurring windows on distinct weekdays, mornings
			// or afternoons.
			weekdays := []int{1, 2, 3, 4, 5}
			gofakeit.ShuffleInts(weekdays)
			for _, weekday := range weekdays[:gofakeit.Number(2, 3)] {
				startMinute := 8 * 60
				endMinute := 12 * 60
				if gofakeit.Bool() {
					startMinute = 14 * 60
					endMinute = 18 * 60
				}

				_, err := pool.Exec(ctx, `
					INSERT INTO availability_windows (id, offer_id, weekday, start_minute, end_minute)
					VALUES ($1, $2, $3, $4, $5)
				`, uuid.New(), offerID, weekday, startMinute, endMinute)
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}
