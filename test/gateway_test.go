// Package test walks the assembled gateway end to end: real token
// verification, a real entitlement service over the in-memory mirror, and the
// full router with the gate in front of the dashboard.
package test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gatehouse/internal/entitlement"
	entmemory "gatehouse/internal/entitlement/store/memory"
	"gatehouse/internal/gate"
	"gatehouse/internal/identity/staticverify"
	profmemory "gatehouse/internal/profile/memory"
	httptransport "gatehouse/internal/transport/http"
	"gatehouse/pkg/testutil"
)

const cookieName = "gh_session"

type gateway struct {
	router   http.Handler
	verifier *staticverify.Verifier
	mirror   *entmemory.Store
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	verifier := staticverify.New("test-signing-key", "gatehouse-test", "gatehouse", staticverify.WithLogger(log))

	mirror := entmemory.New()
	entsvc := entitlement.NewService("memory", entitlement.NewStoreChecker(mirror),
		entitlement.WithMirror(mirror),
		entitlement.WithLogger(log),
	)

	profiles := profmemory.New()
	evaluator, err := gate.New(verifier, entsvc,
		gate.WithProfiles(profiles),
		gate.WithLogger(log),
	)
	require.NoError(t, err)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Evaluator:    evaluator,
		Resolver:     verifier,
		Entitlements: entsvc,
		CookieName:   cookieName,
	})

	return &gateway{router: router, verifier: verifier, mirror: mirror}
}

func (g *gateway) mint(t *testing.T, subject string) string {
	t.Helper()
	token, err := g.verifier.Mint(subject, "sess-"+subject, subject+"@example.com", time.Hour)
	require.NoError(t, err)
	return token
}

func (g *gateway) subscribe(t *testing.T, subject string) {
	t.Helper()
	require.NoError(t, g.mirror.Upsert(context.Background(), entitlement.Status{
		Subject:   subject,
		Plan:      "price_pro",
		State:     entitlement.StateActive,
		UpdatedAt: time.Now().UTC(),
	}))
}

func TestGatewayAccess(t *testing.T) {
	testutil.Given(t, "an anonymous browser", func(t *testing.T) {
		g := newGateway(t)

		testutil.When(t, "it opens the dashboard", func(t *testing.T) {
			rr := testutil.DoRequest(g.router, testutil.NewRequest(t, http.MethodGet, "/dashboard"))

			testutil.Then(t, "it is sent to sign-in", func(t *testing.T) {
				testutil.AssertRedirect(t, rr, gate.DefaultSignInPath)
			})
		})
	})

	testutil.Given(t, "a signed-in user without a subscription", func(t *testing.T) {
		g := newGateway(t)
		token := g.mint(t, "user-free")

		testutil.When(t, "they open the dashboard", func(t *testing.T) {
			req := testutil.WithSessionCookie(testutil.NewRequest(t, http.MethodGet, "/dashboard"), cookieName, token)
			rr := testutil.DoRequest(g.router, req)

			testutil.Then(t, "they are sent to the subscription page", func(t *testing.T) {
				testutil.AssertRedirect(t, rr, gate.DefaultSubscriptionPath)
			})
		})

		testutil.When(t, "they probe their session", func(t *testing.T) {
			req := testutil.WithSessionCookie(testutil.NewRequest(t, http.MethodGet, "/api/session"), cookieName, token)
			rr := testutil.DoRequest(g.router, req)

			testutil.Then(t, "the probe still answers signed in", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				testutil.AssertJSONContains(t, rr, "signed_in", true)
				testutil.AssertJSONContains(t, rr, "subject", "user-free")
			})
		})
	})

	testutil.Given(t, "a subscribed user", func(t *testing.T) {
		g := newGateway(t)
		g.subscribe(t, "user-pro")
		token := g.mint(t, "user-pro")

		testutil.When(t, "they open the dashboard", func(t *testing.T) {
			req := testutil.WithSessionCookie(testutil.NewRequest(t, http.MethodGet, "/dashboard"), cookieName, token)
			rr := testutil.DoRequest(g.router, req)

			testutil.Then(t, "the view renders", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				testutil.AssertJSONContains(t, rr, "subject", "user-pro")
			})
		})

		testutil.When(t, "they query their entitlement over the API", func(t *testing.T) {
			req := testutil.WithBearerToken(testutil.NewRequest(t, http.MethodGet, "/api/entitlements"), token)
			rr := testutil.DoRequest(g.router, req)

			testutil.Then(t, "the payload reports the active plan", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				testutil.AssertJSONContains(t, rr, "active", true)
				testutil.AssertJSONContains(t, rr, "plan", "price_pro")
			})
		})
	})

	testutil.Given(t, "a user whose subscription lapsed", func(t *testing.T) {
		g := newGateway(t)
		g.subscribe(t, "user-lapsed")
		require.NoError(t, g.mirror.Upsert(context.Background(), entitlement.Status{
			Subject:   "user-lapsed",
			Plan:      "price_pro",
			State:     entitlement.StateCanceled,
			UpdatedAt: time.Now().UTC(),
		}))
		token := g.mint(t, "user-lapsed")

		testutil.When(t, "they open the dashboard twice", func(t *testing.T) {
			req := func() *http.Request {
				return testutil.WithSessionCookie(testutil.NewRequest(t, http.MethodGet, "/dashboard"), cookieName, token)
			}
			first := testutil.DoRequest(g.router, req())
			second := testutil.DoRequest(g.router, req())

			testutil.Then(t, "both walks reach the same decision", func(t *testing.T) {
				testutil.AssertRedirect(t, first, gate.DefaultSubscriptionPath)
				testutil.AssertRedirect(t, second, gate.DefaultSubscriptionPath)
			})
		})
	})

	testutil.Given(t, "a forged session token", func(t *testing.T) {
		g := newGateway(t)
		forged := staticverify.New("wrong-key", "gatehouse-test", "gatehouse")
		token, err := forged.Mint("user-pro", "sess-forged", "", time.Hour)
		require.NoError(t, err)

		testutil.When(t, "it is presented at the dashboard", func(t *testing.T) {
			req := testutil.WithSessionCookie(testutil.NewRequest(t, http.MethodGet, "/dashboard"), cookieName, token)
			rr := testutil.DoRequest(g.router, req)

			testutil.Then(t, "it counts as signed out", func(t *testing.T) {
				testutil.AssertRedirect(t, rr, gate.DefaultSignInPath)
			})
		})
	})
}
