package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
)

func evalServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func request() *Request {
	return &Request{
		Dataset: map[string]any{"title": "Air quality"},
		Output:  "json",
	}
}

func TestEvaluateMetadata_ValidResponse(t *testing.T) {
	srv := evalServer(t, http.StatusOK, `{
		"overall_score": 72.5,
		"criteria": [
			{"name": "title", "score": 90, "weight": 0.3, "category": "descriptive", "issues": []},
			{"name": "license", "score": 40, "weight": 0.2, "category": "administrative", "issues": ["missing license"]}
		],
		"suggestions": [{"priority": "high", "text": "add a license"}]
	}`)

	c := NewClient(srv.Client(), srv.URL, "secret", logger.New("error", "json"))
	eval, err := c.EvaluateMetadata(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, 72.5, eval.OverallScore)
	assert.Len(t, eval.Criteria, 2)
	assert.Len(t, eval.Suggestions, 1)
}

func TestEvaluateMetadata_SchemaViolationIsValidationError(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"score out of range", `{"overall_score": 140}`},
		{"bad category", `{"overall_score": 50, "criteria": [{"name":"x","score":10,"weight":0.1,"category":"magic"}]}`},
		{"bad priority", `{"overall_score": 50, "suggestions": [{"priority":"urgent","text":"t"}]}`},
		{"not json", `this is not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := evalServer(t, http.StatusOK, tc.body)
			c := NewClient(srv.Client(), srv.URL, "secret", logger.New("error", "json"))

			_, err := c.EvaluateMetadata(context.Background(), request())
			var validationErr *models.LLMValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestEvaluateMetadata_TransportFailures(t *testing.T) {
	srv := evalServer(t, http.StatusBadGateway, `upstream down`)
	c := NewClient(srv.Client(), srv.URL, "secret", logger.New("error", "json"))

	_, err := c.EvaluateMetadata(context.Background(), request())
	var transportErr *models.LLMTransportError
	assert.ErrorAs(t, err, &transportErr)

	// unreachable endpoint
	c = NewClient(nil, "http://127.0.0.1:1/eval", "secret", logger.New("error", "json"))
	_, err = c.EvaluateMetadata(context.Background(), request())
	assert.ErrorAs(t, err, &transportErr)
}
