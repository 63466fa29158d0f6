package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
	"github.com/siherrmann/factual/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockVerifier struct {
	claims []string
	err    error
}

func (m *mockVerifier) Verify(ctx context.Context, claim string) (*model.VerificationResult, error) {
	m.claims = append(m.claims, claim)
	if m.err != nil {
		return nil, m.err
	}
	return &model.VerificationResult{
		Input:           claim,
		Verdict:         model.VerdictCannotVerify,
		Probabilities:   model.Probabilities{True: 0.5, False: 0.5},
		SupportingTrue:  []model.SourceRef{},
		SupportingFalse: []model.SourceRef{},
	}, nil
}

func do(t *testing.T, s *Server, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleStatus(t *testing.T) {
	s := NewServer(&mockVerifier{}, WithLogger(helper.DiscardLogger()))

	w := do(t, s, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "running", "model": "VerificationSystem"}, decodeBody(t, w))
	assert.NotEmpty(t, w.Header().Get(RequestIDKey), "Response should carry a request ID")
}

func TestHandlePredict(t *testing.T) {
	t.Run("Valid claim", func(t *testing.T) {
		verifier := &mockVerifier{}
		s := NewServer(verifier, WithLogger(helper.DiscardLogger()))

		w := do(t, s, http.MethodPost, "/predict", `{"text": "  The meal plan costs 3000 dollars.  "}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "cannot_verify", body["verdict"])
		assert.Equal(t, "The meal plan costs 3000 dollars.", body["input"])
		assert.Equal(t, []string{"The meal plan costs 3000 dollars."}, verifier.claims)
	})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"Missing text field", `{"claim": "x"}`, "Missing 'text' field"},
		{"Null text field", `{"text": null}`, "Missing 'text' field"},
		{"Invalid json", `not json`, "Missing 'text' field"},
		{"Empty body", ``, "Missing 'text' field"},
		{"Blank text", `{"text": "   "}`, "No text provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &mockVerifier{}
			s := NewServer(verifier, WithLogger(helper.DiscardLogger()))

			w := do(t, s, http.MethodPost, "/predict", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decodeBody(t, w)["error"])
			assert.Empty(t, verifier.claims, "Verifier should not be called")
		})
	}

	t.Run("Pipeline failure", func(t *testing.T) {
		verifier := &mockVerifier{err: &model.PipelineError{Op: "retrieve", Err: errors.New("embedder crashed")}}
		s := NewServer(verifier, WithLogger(helper.DiscardLogger()))

		w := do(t, s, http.MethodPost, "/predict", `{"text": "The meal plan costs 3000 dollars."}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Processing failed: retrieve stage: embedder crashed", decodeBody(t, w)["error"])
	})

	t.Run("Empty claim error from verifier", func(t *testing.T) {
		verifier := &mockVerifier{err: model.ErrEmptyClaim}
		s := NewServer(verifier, WithLogger(helper.DiscardLogger()))

		w := do(t, s, http.MethodPost, "/predict", `{"text": "x"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No text provided", decodeBody(t, w)["error"])
	})

	t.Run("Request ID is propagated", func(t *testing.T) {
		s := NewServer(&mockVerifier{}, WithLogger(helper.DiscardLogger()))

		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"text": "x"}`))
		req.Header.Set(RequestIDKey, "abc")
		w := httptest.NewRecorder()
		s.Router.ServeHTTP(w, req)

		assert.Equal(t, "abc", w.Header().Get(RequestIDKey))
	})

	t.Run("Timeout reaches the verifier", func(t *testing.T) {
		var deadline time.Time
		verifier := verifierFunc(func(ctx context.Context, claim string) (*model.VerificationResult, error) {
			deadline, _ = ctx.Deadline()
			return &model.VerificationResult{Input: claim}, nil
		})
		s := NewServer(verifier, WithLogger(helper.DiscardLogger()), WithTimeout(time.Minute))

		w := do(t, s, http.MethodPost, "/predict", `{"text": "x"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	})
}

type verifierFunc func(ctx context.Context, claim string) (*model.VerificationResult, error)

func (f verifierFunc) Verify(ctx context.Context, claim string) (*model.VerificationResult, error) {
	return f(ctx, claim)
}

func TestCORS(t *testing.T) {
	s := NewServer(&mockVerifier{}, WithLogger(helper.DiscardLogger()))

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	t.Run("Served when metrics are enabled", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		s := NewServer(&mockVerifier{}, WithLogger(helper.DiscardLogger()), WithMetrics(observability.NewMetrics(reg), reg))

		do(t, s, http.MethodGet, "/", "")
		w := do(t, s, http.MethodGet, "/metrics", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `factual_http_requests_total{code="200",route="/"} 1`)
	})

	t.Run("Not registered without metrics", func(t *testing.T) {
		s := NewServer(&mockVerifier{}, WithLogger(helper.DiscardLogger()))

		w := do(t, s, http.MethodGet, "/metrics", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
