// Package e2e drives a deployed gateway end to end with godog. The suite is
// black box: it only talks HTTP, minting its own session tokens and signing
// its own provider events. The target deployment must run IDENTITY_MODE=static
// with the suite's signing key, a mirrored entitlement source, and the
// suite's webhook secret.
//
// Environment contract:
//
//	E2E_BASE_URL        target base URL, e.g. http://localhost:8080 (required)
//	E2E_SIGNING_KEY     matches IDENTITY_STATIC_SIGNING_KEY
//	E2E_ISSUER          matches IDENTITY_ISSUER
//	E2E_AUDIENCE        matches IDENTITY_AUDIENCE
//	E2E_COOKIE_NAME     matches IDENTITY_COOKIE_NAME
//	E2E_WEBHOOK_SECRET  matches BILLING_WEBHOOK_SECRET
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

const maxBodyCapture = 1 << 20

// sessionClaims mirrors the session token shape the gateway verifies in
// static mode.
type sessionClaims struct {
	SessionID string `json:"sid,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TestContext is the shared scenario state: one virtual browser plus the
// billing provider's signing identity. Step packages consume it through
// narrow interfaces.
type TestContext struct {
	baseURL       string
	signingKey    string
	issuer        string
	audience      string
	cookieName    string
	webhookSecret string

	client *http.Client

	token    string
	subject  string
	subjects map[string]string

	lastStatus int
	lastHeader http.Header
	lastBody   []byte
}

// NewTestContext builds the context from the environment. Base URL comes
// from the caller so the suite runner owns the skip decision.
func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL:       strings.TrimRight(baseURL, "/"),
		signingKey:    envOr("E2E_SIGNING_KEY", "e2e-signing-key"),
		issuer:        envOr("E2E_ISSUER", "https://auth.gatehouse.test"),
		audience:      envOr("E2E_AUDIENCE", "gatehouse"),
		cookieName:    envOr("E2E_COOKIE_NAME", "__session"),
		webhookSecret: envOr("E2E_WEBHOOK_SECRET", "whsec_e2e"),
		client: &http.Client{
			Timeout: 10 * time.Second,
			// Redirects are assertions here, never followed.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		subjects: map[string]string{},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Reset clears per-scenario state. Subjects are regenerated each scenario so
// runs stay independent against a shared deployment.
func (tc *TestContext) Reset() {
	tc.token = ""
	tc.subject = ""
	tc.subjects = map[string]string{}
	tc.lastStatus = 0
	tc.lastHeader = nil
	tc.lastBody = nil
}

// ClearSession drops the session token without touching the rest of the
// scenario state.
func (tc *TestContext) ClearSession() {
	tc.token = ""
	tc.subject = ""
}

// SignInAs mints a session token for the aliased subject. The same alias
// maps to the same subject within a scenario and a fresh one in the next.
func (tc *TestContext) SignInAs(alias string) error {
	subject, ok := tc.subjects[alias]
	if !ok {
		subject = fmt.Sprintf("e2e-%s-%s", alias, uuid.NewString()[:8])
		tc.subjects[alias] = subject
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: uuid.NewString(),
		Email:     alias + "@example.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tc.issuer,
			Audience:  jwt.ClaimStrings{tc.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString([]byte(tc.signingKey))
	if err != nil {
		return fmt.Errorf("mint session token: %w", err)
	}

	tc.token = signed
	tc.subject = subject
	return nil
}

// CurrentSubject returns the subject minted by the last SignInAs.
func (tc *TestContext) CurrentSubject() string {
	return tc.subject
}

// Navigate performs a browser-shaped GET: HTML accept header, session
// carried in the cookie.
func (tc *TestContext) Navigate(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/html")
	if tc.token != "" {
		req.AddCookie(&http.Cookie{Name: tc.cookieName, Value: tc.token})
	}
	return tc.do(req)
}

// CallAPI performs an API-shaped GET: JSON accept header, session carried as
// a bearer token.
func (tc *TestContext) CallAPI(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	return tc.do(req)
}

// DeliverBillingEvent signs the payload with the configured webhook secret
// and posts it the way the provider would.
func (tc *TestContext) DeliverBillingEvent(payload []byte) error {
	return tc.deliver(payload, tc.webhookSecret)
}

// DeliverBillingEventSigned posts the payload signed with an arbitrary
// secret, for signature rejection scenarios.
func (tc *TestContext) DeliverBillingEventSigned(payload []byte, secret string) error {
	return tc.deliver(payload, secret)
}

func (tc *TestContext) deliver(payload []byte, secret string) error {
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, tc.baseURL+"/webhooks/billing", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyCapture))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	tc.lastBody = body
	return nil
}

// LastStatus returns the status code of the last response.
func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

// LastHeader returns a header from the last response.
func (tc *TestContext) LastHeader(name string) string {
	if tc.lastHeader == nil {
		return ""
	}
	return tc.lastHeader.Get(name)
}

// ResponseField resolves a dotted path ("entitlement.state") in the last
// JSON response body.
func (tc *TestContext) ResponseField(path string) (any, error) {
	if len(tc.lastBody) == 0 {
		return nil, fmt.Errorf("no response body captured")
	}
	var doc map[string]any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}

	var current any = doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, key)
		}
		current, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("field %q missing from response %s", path, tc.lastBody)
		}
	}
	return current, nil
}
