package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gatehouse/internal/profile"
)

func TestFetch(t *testing.T) {
	t.Run("returns the decoded profile", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/profiles/user-1", r.URL.Path)
			require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(profile.Profile{
				Subject: "user-1",
				Name:    "Ada",
				Email:   "ada@example.com",
			})
		}))
		defer server.Close()

		client := New(server.URL, "key-123", time.Second)

		p, err := client.Fetch(context.Background(), "user-1")
		require.NoError(t, err)
		require.Equal(t, "Ada", p.Name)
	})

	t.Run("missing profile is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := New(server.URL, "", time.Second)

		p, err := client.Fetch(context.Background(), "nobody")
		require.NoError(t, err)
		require.Nil(t, p)
	})

	t.Run("server errors propagate", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := New(server.URL, "", time.Second)

		_, err := client.Fetch(context.Background(), "user-1")
		require.Error(t, err)
	})
}
