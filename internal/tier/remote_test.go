package tier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

func TestRemoteService(t *testing.T) {
	t.Run("generates an answer", func(t *testing.T) {
		var got remoteGenerateRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/query", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(remoteGenerateResponse{AnswerText: "  Apply a tourniquet high and tight.  "})
		}))
		defer srv.Close()

		svc, err := NewRemoteService("remote", srv.URL, time.Second)
		require.NoError(t, err)

		answer, err := svc.Generate(context.Background(), domain.GenerationRequest{
			Prompt:      "bleeding control",
			MaxTokens:   150,
			Temperature: 0.3,
		})
		require.NoError(t, err)
		assert.Equal(t, "Apply a tourniquet high and tight.", answer)
		assert.Equal(t, "bleeding control", got.Prompt)
		assert.Equal(t, 150, got.MaxTokens)
		assert.InDelta(t, 0.3, got.Temperature, 1e-6)
	})

	t.Run("non-200 response fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		svc, err := NewRemoteService("remote", srv.URL, time.Second)
		require.NoError(t, err)

		_, err = svc.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
		assert.Error(t, err)
	})

	t.Run("empty answer fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(remoteGenerateResponse{AnswerText: "   "})
		}))
		defer srv.Close()

		svc, err := NewRemoteService("remote", srv.URL, time.Second)
		require.NoError(t, err)

		_, err = svc.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
		assert.Error(t, err)
	})

	t.Run("service-reported error fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(remoteGenerateResponse{Error: "model not loaded"})
		}))
		defer srv.Close()

		svc, err := NewRemoteService("remote", srv.URL, time.Second)
		require.NoError(t, err)

		_, err = svc.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-block
		}))
		defer srv.Close()
		defer close(block)

		svc, err := NewRemoteService("remote", srv.URL, time.Minute)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = svc.Generate(ctx, domain.GenerationRequest{Prompt: "x"})
		assert.Error(t, err)
	})

	t.Run("health check", func(t *testing.T) {
		healthy := true
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}))
		defer srv.Close()

		svc, err := NewRemoteService("remote", srv.URL, time.Second)
		require.NoError(t, err)

		assert.NoError(t, svc.Healthy(context.Background()))
		healthy = false
		assert.Error(t, svc.Healthy(context.Background()))
	})

	t.Run("requires a base URL", func(t *testing.T) {
		_, err := NewRemoteService("remote", "", time.Second)
		assert.Error(t, err)
	})
}
