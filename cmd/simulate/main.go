package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencare/treatment-booking/internal/config"
	"github.com/opencare/treatment-booking/internal/db"
)

// The simulator hammers the booking endpoint with many workers aiming at a
// small set of offers, so a meaningful share of requests target the same
// slots. Conflicts (409) are the interesting outcome: the run proves that
// concurrent bookings never double-book a slot.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	PatientLimit int
	OfferLimit   int
	PostgresDSN  string
}

type DataPool struct {
	Patients []uuid.UUID
	Offers   []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking OperationMetrics
	Slots   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()
	if err := validateSimConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking_ratio=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d offers", len(dataPool.Patients), len(dataPool.Offers))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.7),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 1000),
		OfferLimit:   getInt("SIM_OFFER_LIMIT", 20),
		PostgresDSN:  baseCfg.PostgresDSN,
	}
}

func validateSimConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.BookingRatio < 0 || cfg.BookingRatio > 1 {
		return fmt.Errorf("SIM_BOOKING_RATIO must be between 0 and 1")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM treatment_offers
		WHERE offer_end >= current_date
		LIMIT $1
	`, cfg.OfferLimit)
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Offers = append(dataPool.Offers, id)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(dataPool.Offers) == 0 {
		return nil, fmt.Errorf("no offers loaded, run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else {
				s.doGetSlots(ctx, rng)
			}
		}
	}
}

// doGetSlots fetches free slots for a random offer on a random day of the
// coming week; when slots come back one may be used for a later booking.
func (s *Simulator) doGetSlots(ctx context.Context, rng *rand.Rand) {
	offerID := s.pool.Offers[rng.Intn(len(s.pool.Offers))]
	date := time.Now().AddDate(0, 0, 1+rng.Intn(7)).Format("2006-01-02")

	start := time.Now()

	url := fmt.Sprintf("%s/offers/%s/slots?date=%s", s.config.APIBaseURL, offerID, date)
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Slots.Record(latency, success, false)
}

// doBooking books a random offer at a deliberately coarse time so that
// workers frequently collide on the same slot.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	offerID := s.pool.Offers[rng.Intn(len(s.pool.Offers))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	// Aim at one of a handful of morning slots next week.
	day := time.Now().AddDate(0, 0, 1+rng.Intn(7))
	at := time.Date(day.Year(), day.Month(), day.Day(), 8+rng.Intn(4), 30*rng.Intn(2), 0, 0, time.Local)

	start := time.Now()

	reqBody := map[string]string{
		"patient_id": patientID.String(),
		"offer_id":   offerID.String(),
		"time":       at.Format(time.RFC3339),
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== simulation report ===")
	printOperation("booking", &s.metrics.Booking)
	printOperation("slots", &s.metrics.Slots)
}

func printOperation(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		fmt.Printf("%-10s no operations\n", name)
		return
	}

	avg, min, max, p50, p95 := om.Stats()
	fmt.Printf("%-10s total=%d success=%d conflict=%d error=%d\n",
		name, total,
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error),
	)
	fmt.Printf("%-10s latency avg=%s min=%s max=%s p50=%s p95=%s\n",
		"", avg, min, max, p50, p95)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
