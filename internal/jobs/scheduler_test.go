package jobs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingJob struct {
	runs  int32
	panic bool
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	if j.panic {
		panic("boom")
	}
	return nil
}

func TestScheduler_RunsJobsUntilStopped(t *testing.T) {
	s := newScheduler(quietLogger())
	job := &countingJob{}
	s.Add(job, 10*time.Millisecond)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())

	runs := atomic.LoadInt32(&job.runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, runs, atomic.LoadInt32(&job.runs))
}

func TestScheduler_RecoversFromPanics(t *testing.T) {
	s := newScheduler(quietLogger())
	job := &countingJob{panic: true}
	s.Add(job, 10*time.Millisecond)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestGeoDBReloadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GeoLite2-City.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	job := NewGeoDBReloadJob(path, quietLogger())
	reloads := 0
	job.reload = func() { reloads++ }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 0, reloads, "unchanged file is not reloaded")

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, reloads)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, reloads)

	missing := NewGeoDBReloadJob(filepath.Join(t.TempDir(), "missing.mmdb"), quietLogger())
	assert.NoError(t, missing.Run(context.Background()))
}
