package intel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"responseready/intel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordAnalyzer(t *testing.T) {
	ctx := context.Background()
	var analyzer intel.KeywordAnalyzer

	t.Run("Urgent", func(t *testing.T) {
		a, err := analyzer.Analyze(ctx, "EMERGENCY at the dock, need backup now")
		require.NoError(t, err)
		assert.Equal(t, intel.PriorityHigh, a.Priority)
		assert.Equal(t, "Immediate response required", a.SuggestedResponse)
		assert.Equal(t, "Communication received with 7 words.", a.Summary)
		assert.Equal(t, []string{"Keyword detected: emergency", "Keyword detected: backup"}, a.Alerts)
	})

	t.Run("Assistance", func(t *testing.T) {
		a, err := analyzer.Analyze(ctx, "Requesting assistance on Route 9")
		require.NoError(t, err)
		assert.Equal(t, intel.PriorityMedium, a.Priority)
		assert.Equal(t, "Dispatch backup if available", a.SuggestedResponse)
	})

	t.Run("Routine", func(t *testing.T) {
		a, err := analyzer.Analyze(ctx, "  Unit 4   clear,  returning to base ")
		require.NoError(t, err)
		assert.Equal(t, intel.PriorityLow, a.Priority)
		assert.Equal(t, "Monitor situation", a.SuggestedResponse)
		assert.Equal(t, "Communication received with 6 words.", a.Summary)
		assert.Empty(t, a.Alerts)
	})
}

func TestClient_Analyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		var body struct{ Text string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "shots fired", body.Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":"Shots fired reported","alerts":["Armed suspect"]}`))
	}))
	defer server.Close()

	client := intel.NewClient(server.URL, "", "key-1", time.Second)
	a, err := client.Analyze(context.Background(), "shots fired")
	require.NoError(t, err)
	assert.Equal(t, "Shots fired reported", a.Summary)
	assert.Equal(t, []string{"Armed suspect"}, a.Alerts)
}

func TestClient_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := intel.NewClient(server.URL, server.URL, "", time.Second)

	_, err := client.Analyze(context.Background(), "x")
	assert.ErrorIs(t, err, intel.ErrUnavailable)

	_, err = client.Synthesize(context.Background(), "x")
	assert.ErrorIs(t, err, intel.ErrUnavailable)

	unconfigured := intel.NewClient("", "", "", time.Second)
	_, err = unconfigured.Synthesize(context.Background(), "x")
	assert.ErrorIs(t, err, intel.ErrUnavailable)
}

func TestClient_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"audioDataUri":"data:audio/wav;base64,AAAA"}`))
	}))
	defer server.Close()

	client := intel.NewClient("", server.URL, "", time.Second)
	speech, err := client.Synthesize(context.Background(), "Unit 4 respond")
	require.NoError(t, err)
	assert.Equal(t, "data:audio/wav;base64,AAAA", speech.AudioDataURI)
}
