package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/compressd/internal/config"
	"github.com/fyrsmithlabs/compressd/internal/report"
)

const sampleBody = "1 Shipping Terms\n\n" +
	"Orders placed before noon ship the same business day from the nearest regional warehouse. " +
	"Standard delivery takes three to five business days depending on the destination region. " +
	"Expedited delivery is available for most destinations and arrives the following morning. " +
	"Delivery is free unless the order total falls below the posted minimum.\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(config.Default(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(config.Default(), nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestCompress(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodPost, "/v1/compress", sampleBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rep, err := report.Read(rec.Body)
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.NotEmpty(t, rep.Chunks)
	assert.Equal(t, "1", rep.Chunks[0].Chunk.SectionID)
	require.NotEmpty(t, rep.CriticalFacts, "the unless clause must surface a fact")
	assert.Contains(t, rep.CriticalFacts[0].Sentence, "unless")
}

func TestCompress_EmptyBody(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, http.MethodPost, "/v1/compress", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompress_QueryOverrides(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodPost, "/v1/compress?strategy=critical&max_length=120", sampleBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rep, err := report.Read(rec.Body)
	require.NoError(t, err)
	require.NotEmpty(t, rep.Chunks)
	require.NotNil(t, rep.Chunks[0].Summary)
	assert.Equal(t, "critical", rep.Chunks[0].Summary.StrategyUsed)
}

func TestCompress_InvalidOverridesRejected(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		target string
	}{
		{name: "unknown strategy", target: "/v1/compress?strategy=telepathic"},
		{name: "ratio not a number", target: "/v1/compress?target_ratio=lots"},
		{name: "ratio out of range", target: "/v1/compress?target_ratio=2.0"},
		{name: "max length not a number", target: "/v1/compress?max_length=big"},
		{name: "max length below min words", target: "/v1/compress?max_length=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, tt.target, sampleBody)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
