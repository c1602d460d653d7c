package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleIngest_FromPastedText(t *testing.T) {
	srv := newTestServer()
	srv.NewOracle = scriptedOracle(`[{"id":"CLAIM-1","text":"NVDA's moat is durable","type":"core_thesis","snippet":"CUDA lock-in"}]`)
	mux := srv.Routes()

	body, _ := json.Marshal(map[string]any{"text": "CUDA lock-in is the whole thesis here."})
	req := httptest.NewRequest("POST", "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Pasted Content", resp["title"])
	claims := resp["claims"].([]any)
	require.Len(t, claims, 1)
	assert.Equal(t, "core_thesis", claims[0].(map[string]any)["type"])
}

func TestHandleIngest_MissingAPIKeyReturns400(t *testing.T) {
	srv := newTestServer()
	srv.Config.Oracle.APIKey = ""
	mux := srv.Routes()

	body, _ := json.Marshal(map[string]any{"text": "some text"})
	req := httptest.NewRequest("POST", "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHandleIngest_MissingURLAndTextReturns400(t *testing.T) {
	srv := newTestServer()
	mux := srv.Routes()

	body, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest("POST", "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHandleIngest_RequestAPIKeyOverridesConfig(t *testing.T) {
	srv := newTestServer()
	srv.Config.Oracle.APIKey = ""
	srv.NewOracle = scriptedOracle(`[]`)
	mux := srv.Routes()

	body, _ := json.Marshal(map[string]any{"text": "x", "api_key": "req-key"})
	req := httptest.NewRequest("POST", "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}
