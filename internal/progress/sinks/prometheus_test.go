package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/content-capture/internal/progress"
)

func TestPrometheusSinkRecordsStages(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{CaptureID: "a", TS: now, Stage: progress.StageClaimed},
		{CaptureID: "a", TS: now, Stage: progress.StageClaimed},
		{CaptureID: "b", TS: now, Stage: progress.StageClaimed},
		{CaptureID: "a", TS: now, Stage: progress.StageScraped, Strategy: "generic", Dur: 2 * time.Second},
		{CaptureID: "a", TS: now, Stage: progress.StageCategorized, Degraded: true, Dur: time.Second},
		{CaptureID: "a", TS: now, Stage: progress.StageCompleted, Dur: 4 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.inFlight))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.stageEvents.WithLabelValues("claimed", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.stageEvents.WithLabelValues("categorized", "true")))
	assert.Equal(t, 3, testutil.CollectAndCount(sink.stageDuration, "capture_stage_duration_seconds"))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{CaptureID: "b", TS: now, Stage: progress.StageFailed},
		{CaptureID: "b", TS: now, Stage: progress.StageFailed},
	}))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.inFlight))
}

func TestPrometheusSinkSharesRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	second, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, second.Consume(context.Background(), []progress.Event{
		{CaptureID: "x", TS: time.Now(), Stage: progress.StageClaimed},
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.stageEvents.WithLabelValues("claimed", "false")))
}

func TestLogSinkWritesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{CaptureID: "c1", TS: time.Now(), Stage: progress.StageScraped, Strategy: "youtube", Degraded: true},
	}))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.FilterMessage("capture progress").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "c1", fields["capture_id"])
	assert.Equal(t, "youtube", fields["strategy"])
	assert.Equal(t, true, fields["degraded"])
}
