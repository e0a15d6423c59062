package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-capture/internal/capture"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProcessPrintsCapturedRecord(t *testing.T) {
	t.Setenv("CAPTURE_LLM_API_KEY", "")
	t.Setenv("CAPTURE_LOGGING_DEVELOPMENT", "false")

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Field notes on caching</title>
<meta name="description" content="Cache invalidation strategies for read-heavy services."></head>
<body><article><p>Caching keeps read-heavy services fast. These notes compare write-through,
write-behind and explicit invalidation, with the failure modes of each.</p></article></body></html>`))
	}))
	t.Cleanup(page.Close)

	out, err := runCLI(t, "process", page.URL+"/notes", "--notes", "for the perf review")
	require.NoError(t, err)

	var rec capture.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, capture.StatusComplete, rec.Status)
	assert.Equal(t, "Field notes on caching", rec.Title)
	assert.Equal(t, "for the perf review", rec.Notes)
	assert.Equal(t, capture.SourceWeb, rec.SourceType)
}

func TestProcessRejectsInvalidURL(t *testing.T) {
	_, err := runCLI(t, "process", "ftp://example.com/file")
	require.ErrorIs(t, err, capture.ErrInvalidURL)
}

func TestProcessRequiresOneArgument(t *testing.T) {
	_, err := runCLI(t, "process")
	require.Error(t, err)
}

func TestRootRejectsBadConfigPath(t *testing.T) {
	_, err := runCLI(t, "--config", "/does/not/exist.yaml", "process", "https://example.com")
	require.ErrorContains(t, err, "load config")
}
