package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs int
	err  error
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type stubLock struct {
	available bool
	acquired  int
	released  int
}

func (l *stubLock) Acquire(context.Context) (bool, error) {
	l.acquired++
	return l.available, nil
}

func (l *stubLock) Release(context.Context) error {
	l.released++
	return nil
}

func TestRegistryOrderAndNilFiltering(t *testing.T) {
	t.Parallel()

	first := &stubJob{name: "first"}
	second := &stubJob{name: "second"}

	registry := NewRegistry(first, nil, second)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, "first", jobs[0].Name())
	require.Equal(t, "second", jobs[1].Name())
}

func TestServiceRunsJobsUnderLock(t *testing.T) {
	t.Parallel()

	job := &stubJob{name: "sweep"}
	failing := &stubJob{name: "broken", err: errors.New("boom")}
	lock := &stubLock{available: true}

	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job, failing),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	require.Equal(t, 1, job.runs)
	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, lock.acquired)
	require.Equal(t, 1, lock.released)
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	t.Parallel()

	job := &stubJob{name: "sweep"}
	lock := &stubLock{available: false}

	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	require.Zero(t, job.runs)
	require.Zero(t, lock.released)
}

func TestServiceStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	service, err := NewService(ServiceParams{
		Logger: testLogger(),
		Lock:   &stubLock{available: true},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, service.Run(ctx), context.Canceled)
}
