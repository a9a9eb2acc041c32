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

func TestLocalModel(t *testing.T) {
	t.Run("generates an answer", func(t *testing.T) {
		var got localGenerateRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/generate", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(localGenerateResponse{Response: "Needle decompress the second intercostal space."})
		}))
		defer srv.Close()

		lm, err := NewLocalModel("local", srv.URL, "llama3.2:1b", time.Second)
		require.NoError(t, err)

		answer, err := lm.Generate(context.Background(), domain.GenerationRequest{
			Prompt:      "tension pneumothorax",
			MaxTokens:   150,
			Temperature: 0.3,
		})
		require.NoError(t, err)
		assert.Equal(t, "Needle decompress the second intercostal space.", answer)
		assert.Equal(t, "llama3.2:1b", got.Model)
		assert.Equal(t, "tension pneumothorax", got.Prompt)
		assert.False(t, got.Stream)
		assert.Equal(t, 150, got.Options.NumPredict)
	})

	t.Run("runtime error fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(localGenerateResponse{Error: "model not found"})
		}))
		defer srv.Close()

		lm, err := NewLocalModel("local", srv.URL, "llama3.2:1b", time.Second)
		require.NoError(t, err)

		_, err = lm.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not found")
	})

	t.Run("health check hits the version endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/version", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"version": "0.5.1"})
		}))
		defer srv.Close()

		lm, err := NewLocalModel("local", srv.URL, "llama3.2:1b", time.Second)
		require.NoError(t, err)
		assert.NoError(t, lm.Healthy(context.Background()))
	})

	t.Run("requires a model name", func(t *testing.T) {
		_, err := NewLocalModel("local", "http://localhost:11434", "", time.Second)
		assert.Error(t, err)
	})
}
