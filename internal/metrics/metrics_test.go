// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()

	r.ObserveRun("useful")
	r.ObserveRun("useful")
	r.ObserveRun("")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.workflowRuns.WithLabelValues("useful")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workflowRuns.WithLabelValues("none")))

	r.ObserveLLMCall("generate", time.Second, nil)
	r.ObserveLLMCall("generate", time.Second, errors.New("x"))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.llmCalls.WithLabelValues("generate", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.llmCalls.WithLabelValues("generate", StatusError)))

	r.ObserveIngest(2*time.Second, 12)
	assert.Equal(t, 12.0, testutil.ToFloat64(r.ingestChunks))

	r.ObserveWebSearch("tavily", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.webSearches.WithLabelValues("tavily", StatusOK)))

	r.ObserveNode("generate", 300*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(r.nodeDuration))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRun("useful")
		r.ObserveNode("generate", time.Second)
		r.ObserveLLMCall("generate", time.Second, nil)
		r.ObserveIngest(time.Second, 1)
		r.ObserveWebSearch("duckduckgo", nil)
	})
	assert.Nil(t, r.Registry())
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveRun("max retries")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `ragrun_workflow_runs_total{outcome="max retries"} 1`), text)
	assert.Contains(t, text, "go_goroutines")
}
