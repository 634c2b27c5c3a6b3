package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	validateCmd.SetOut(&out)
	t.Cleanup(func() { validateCmd.SetOut(nil) })

	err := validateCmd.RunE(validateCmd, []string{"testdata/job_update.json"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ok update job/job-42")

	out.Reset()
	err = validateCmd.RunE(validateCmd, []string{"testdata/job_update.json", "testdata/bad_kind.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out.String(), "bad_kind.json: invalid")
}

func TestReadEnvelope_MissingFile(t *testing.T) {
	_, err := readEnvelope("testdata/nope.json")
	assert.Error(t, err)
}

func TestHealthMux(t *testing.T) {
	mux := healthMux(&app{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
