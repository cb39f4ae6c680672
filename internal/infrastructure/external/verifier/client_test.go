package verifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/pkg/circuitbreaker"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
	"github.com/upgrd-hub/progression-engine/pkg/retry"
)

func testMission() *mission.Mission {
	return &mission.Mission{
		ID:            shared.MissionID("weekly_upgrade"),
		Name:          "Upgrade da Semana",
		Description:   "Faça um upgrade real no seu setup",
		Requirements:  "Foto ou nota fiscal do componente instalado",
		Period:        shared.PeriodWeekly,
		Reward:        500,
		RequiresProof: true,
	}
}

// chatServer returns an httptest server that always answers with the
// given content, recording request count and the last request body.
func chatServer(t *testing.T, content string, calls *atomic.Int32, lastBody *atomic.Value) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if lastBody != nil {
			body, _ := io.ReadAll(r.Body)
			lastBody.Store(string(body))
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL: baseURL,
		Model:   "test-model",
		Timeout: 2 * time.Second,
		Retrier: retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond)),
		Breaker: circuitbreaker.New("test-verifier",
			circuitbreaker.WithFailureThreshold(2),
			circuitbreaker.WithTimeout(time.Minute)),
		Logger: logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	})
}

func TestClient_AcceptedVerdict(t *testing.T) {
	var calls atomic.Int32
	var lastBody atomic.Value
	srv := chatServer(t, "SIM. Nota fiscal legível e componente compatível.", &calls, &lastBody)
	defer srv.Close()

	client := newTestClient(srv.URL)

	verdict, err := client.Verify(context.Background(), testMission(), "nota fiscal da RTX 4080 anexada")
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.Equal(t, "Nota fiscal legível e componente compatível.", verdict.Note)
	assert.Equal(t, int32(1), calls.Load())

	// The prompt must carry the mission requirements and the proof.
	body, _ := lastBody.Load().(string)
	assert.Contains(t, body, "Nota fiscal do componente instalado")
	assert.Contains(t, body, "RTX 4080")
	assert.Contains(t, body, "test-model")
}

func TestClient_RejectedVerdict(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, "NÃO - a prova não menciona nenhum componente.", &calls, nil)
	defer srv.Close()

	client := newTestClient(srv.URL)

	verdict, err := client.Verify(context.Background(), testMission(), "fiz o upgrade, confia")
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.Equal(t, "a prova não menciona nenhum componente.", verdict.Note)
}

func TestClient_RejectionWithoutAccent(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, "nao, prova insuficiente", &calls, nil)
	defer srv.Close()

	client := newTestClient(srv.URL)

	verdict, err := client.Verify(context.Background(), testMission(), "qualquer coisa")
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.Equal(t, "prova insuficiente", verdict.Note)
}

func TestClient_UnparseableAnswer(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, "Talvez, depende do ponto de vista.", &calls, nil)
	defer srv.Close()

	client := newTestClient(srv.URL)

	verdict, err := client.Verify(context.Background(), testMission(), "prova")
	assert.Nil(t, verdict)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.ErrorIs(t, err, shared.ErrVerifierInvalidResponse)
}

func TestClient_TimeoutMapsToVerifierTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(ClientConfig{
		BaseURL: srv.URL,
		Model:   "test-model",
		Timeout: 50 * time.Millisecond,
		Retrier: retry.New(retry.WithMaxAttempts(1), retry.WithInitialDelay(time.Millisecond)),
		Breaker: circuitbreaker.New("test-verifier-timeout",
			circuitbreaker.WithFailureThreshold(10),
			circuitbreaker.WithTimeout(time.Minute)),
		Logger: logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	})

	_, err := client.Verify(context.Background(), testMission(), "prova")
	assert.ErrorIs(t, err, shared.ErrVerifierTimeout)
	assert.ErrorIs(t, err, shared.ErrTimeout)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "SIM"}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	verdict, err := client.Verify(context.Background(), testMission(), "prova")
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.Empty(t, verdict.Note)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.Verify(context.Background(), testMission(), "prova")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	// Two failed calls trip the breaker (threshold 2); each exhausts
	// its own retry budget against the endpoint.
	_, err := client.Verify(context.Background(), testMission(), "prova")
	require.Error(t, err)
	_, err = client.Verify(context.Background(), testMission(), "prova")
	require.Error(t, err)

	callsBefore := calls.Load()
	_, err = client.Verify(context.Background(), testMission(), "prova")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, callsBefore, calls.Load(), "open circuit must not hit the endpoint")
}

func TestParseVerdict(t *testing.T) {
	t.Run("bare SIM", func(t *testing.T) {
		v, err := parseVerdict("SIM")
		require.NoError(t, err)
		assert.True(t, v.Accepted)
		assert.Empty(t, v.Note)
	})

	t.Run("lowercase sim with note", func(t *testing.T) {
		v, err := parseVerdict("sim, benchmark com score acima da média")
		require.NoError(t, err)
		assert.True(t, v.Accepted)
		assert.Equal(t, "benchmark com score acima da média", v.Note)
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := parseVerdict("   ")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}
