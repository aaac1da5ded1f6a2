// Command billing-backend is a development stand-in for the application
// backend the gateway queries in backend mode. It serves the entitlement and
// profile endpoints with deterministic answers derived from the subject, and
// injects optional latency and failures for exercising the gate's circuit
// breaker locally.
//
// Subjects containing "free" have no subscription record, subjects
// containing "lapsed" are canceled, everything else is active on
// price_mock_monthly. PUT /entitlements/{subject} pins an explicit answer
// for one subject.
package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
)

type config struct {
	Addr     string        `env:"MOCK_ADDR" envDefault:":9090"`
	APIKey   string        `env:"MOCK_API_KEY"`
	Latency  time.Duration `env:"MOCK_LATENCY" envDefault:"0"`
	FailRate float64       `env:"MOCK_FAIL_RATE" envDefault:"0"`
}

type entitlementStatus struct {
	Subject           string    `json:"subject"`
	CustomerID        string    `json:"customer_id,omitempty"`
	SubscriptionID    string    `json:"subscription_id,omitempty"`
	Plan              string    `json:"plan,omitempty"`
	State             string    `json:"state"`
	CurrentPeriodEnd  time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type profilePayload struct {
	Subject   string `json:"subject"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type backend struct {
	cfg config
	log *slog.Logger

	mu        sync.RWMutex
	overrides map[string]*entitlementStatus
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	b := &backend{
		cfg:       cfg,
		log:       log,
		overrides: map[string]*entitlementStatus{},
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Group(func(r chi.Router) {
		r.Use(b.chaos)
		r.Use(b.requireKey)
		r.Get("/entitlements/{subject}", b.handleEntitlement)
		r.Put("/entitlements/{subject}", b.handlePin)
		r.Get("/profiles/{subject}", b.handleProfile)
	})

	log.Info("mock billing backend listening", "addr", cfg.Addr,
		"latency", cfg.Latency, "fail_rate", cfg.FailRate)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// chaos applies the configured latency and failure rate before any handler
// runs, so the gateway sees a misbehaving backend.
func (b *backend) chaos(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.cfg.Latency > 0 {
			time.Sleep(b.cfg.Latency)
		}
		if b.cfg.FailRate > 0 && rand.Float64() < b.cfg.FailRate {
			http.Error(w, "injected failure", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *backend) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.cfg.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+b.cfg.APIKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *backend) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	b.mu.RLock()
	pinned, ok := b.overrides[subject]
	b.mu.RUnlock()
	if ok {
		if pinned == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, pinned)
		return
	}

	status := derivedStatus(subject)
	if status == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, status)
}

// handlePin stores an explicit answer for one subject. A null body pins
// "no record" so the 404 path can be forced for any subject.
func (b *backend) handlePin(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	var status *entitlementStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		http.Error(w, "invalid status payload", http.StatusBadRequest)
		return
	}
	if status != nil && status.Subject == "" {
		status.Subject = subject
	}

	b.mu.Lock()
	b.overrides[subject] = status
	b.mu.Unlock()

	b.log.Info("pinned entitlement", "subject", subject, "pinned", status != nil)
	w.WriteHeader(http.StatusNoContent)
}

func (b *backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if strings.Contains(subject, "noprofile") {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, profilePayload{
		Subject: subject,
		Name:    displayName(subject),
		Email:   subject + "@example.test",
	})
}

func derivedStatus(subject string) *entitlementStatus {
	switch {
	case strings.Contains(subject, "free"):
		return nil
	case strings.Contains(subject, "lapsed"):
		return &entitlementStatus{
			Subject:          subject,
			CustomerID:       "cus_mock_" + subject,
			SubscriptionID:   "sub_mock_" + subject,
			Plan:             "price_mock_monthly",
			State:            "canceled",
			CurrentPeriodEnd: time.Now().Add(-24 * time.Hour).UTC(),
			UpdatedAt:        time.Now().UTC(),
		}
	default:
		return &entitlementStatus{
			Subject:          subject,
			CustomerID:       "cus_mock_" + subject,
			SubscriptionID:   "sub_mock_" + subject,
			Plan:             "price_mock_monthly",
			State:            "active",
			CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).UTC(),
			UpdatedAt:        time.Now().UTC(),
		}
	}
}

func displayName(subject string) string {
	return strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(subject)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
