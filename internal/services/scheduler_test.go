package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerStartRegistersPipelineJob(t *testing.T) {
	pipeline, _ := newTestPipeline(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	scheduler := NewSchedulerService("@hourly", pipeline, testLogger())

	require.NoError(t, scheduler.Start())
	defer scheduler.Stop()

	jobs := scheduler.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "pipeline", jobs[0].ID)
	assert.Equal(t, "@hourly", jobs[0].Schedule)
	assert.Equal(t, "scheduled", jobs[0].Status)
	assert.Zero(t, jobs[0].RunCount)

	assert.Error(t, scheduler.Start(), "second start must be rejected")
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	pipeline, _ := newTestPipeline(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	scheduler := NewSchedulerService("not a schedule", pipeline, testLogger())

	assert.Error(t, scheduler.Start())
}

func TestSchedulerStopReturnsWhileJobInFlight(t *testing.T) {
	// Slow upstream keeps the pipeline run in flight when Stop is called.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer slow.Close()

	pipeline, _ := newTestPipeline(t, slow.URL, slow.URL)
	scheduler := NewSchedulerService("@every 1s", pipeline, testLogger())
	require.NoError(t, scheduler.Start())

	// Let the first scheduled run begin before stopping.
	time.Sleep(1500 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return while a pipeline run was in flight")
	}
}
