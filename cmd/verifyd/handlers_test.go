package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflowverify/internal/guard"
	"github.com/lyzr/workflowverify/internal/telemetry/logger"
)

// newTestContainer builds a Container with no database or queue, matching
// the service's best-effort connectivity policy (cmd/verifyd/container.go):
// compile/verify/simulate/project must all work against in-memory nets with
// persistence disabled.
func newTestContainer(t *testing.T) *Container {
	t.Helper()
	ev, err := guard.NewEvaluator()
	require.NoError(t, err)
	return &Container{
		Logger:    logger.New("error", "text"),
		GuardEval: ev,
		nets:      newNetStore(),
	}
}

func doRequest(e *echo.Echo, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const linearSpecJSON = `{
	"name": "linear",
	"steps": [
		{"id": "s1", "type": "ACTION", "description": "send an email"},
		{"id": "s2", "type": "ACTION", "description": "write a file", "dependencies": ["s1"]}
	]
}`

func TestVerifydEndToEnd(t *testing.T) {
	c := newTestContainer(t)
	e := echo.New()
	registerRoutes(e, c)

	compileRec := doRequest(e, http.MethodPost, "/api/v1/nets/compile", []byte(linearSpecJSON))
	require.Equal(t, http.StatusCreated, compileRec.Code)

	var net map[string]any
	require.NoError(t, json.Unmarshal(compileRec.Body.Bytes(), &net))
	netID, ok := net["ID"].(string)
	require.True(t, ok, "compiled net response must carry an ID field")
	assert.NotEmpty(t, netID)

	verifyRec := doRequest(e, http.MethodPost, "/api/v1/nets/"+netID+"/verify", []byte(`{}`))
	assert.Equal(t, http.StatusOK, verifyRec.Code)

	var verifyBody map[string]any
	require.NoError(t, json.Unmarshal(verifyRec.Body.Bytes(), &verifyBody))
	result, ok := verifyBody["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PASS", result["Status"])

	simRec := doRequest(e, http.MethodPost, "/api/v1/nets/"+netID+"/simulate", []byte(`{}`))
	assert.Equal(t, http.StatusOK, simRec.Code)

	var simBody map[string]any
	require.NoError(t, json.Unmarshal(simRec.Body.Bytes(), &simBody))
	assert.Equal(t, "COMPLETED", simBody["status"])
	assert.EqualValues(t, 2, simBody["steps"])
	assert.Equal(t, true, simBody["success"])
	assert.NotEmpty(t, simBody["message"])
	assert.NotEmpty(t, simBody["initial_marking"])
	assert.NotEmpty(t, simBody["started_at"])
	assert.NotEmpty(t, simBody["ended_at"])

	projectRec := doRequest(e, http.MethodPost, "/api/v1/nets/"+netID+"/project", nil)
	assert.Equal(t, http.StatusOK, projectRec.Code)
}

func TestVerifyUnknownNetReturnsNotFound(t *testing.T) {
	c := newTestContainer(t)
	e := echo.New()
	registerRoutes(e, c)

	rec := doRequest(e, http.MethodPost, "/api/v1/nets/does-not-exist/verify", []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueVerifyWithoutQueueReturnsServiceUnavailable(t *testing.T) {
	c := newTestContainer(t)
	e := echo.New()
	registerRoutes(e, c)

	compileRec := doRequest(e, http.MethodPost, "/api/v1/nets/compile", []byte(linearSpecJSON))
	require.Equal(t, http.StatusCreated, compileRec.Code)
	var net map[string]any
	require.NoError(t, json.Unmarshal(compileRec.Body.Bytes(), &net))
	netID := net["ID"].(string)

	rec := doRequest(e, http.MethodPost, "/api/v1/nets/"+netID+"/verify/async", []byte(`{}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetRunWithoutPersistenceReturnsServiceUnavailable(t *testing.T) {
	c := newTestContainer(t)
	e := echo.New()
	registerRoutes(e, c)

	rec := doRequest(e, http.MethodGet, "/api/v1/runs/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
