package scheduler

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbottock-ai/VeraScore/internal/metrics"
)

type recordingJob struct {
	name string
	runs int
	err  error
}

func (j *recordingJob) Run() error {
	j.runs++
	return j.err
}

func (j *recordingJob) Name() string { return j.name }

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop(), nil)

	err := s.AddJob("not a schedule", &recordingJob{name: "cleanup"})
	assert.Error(t, err)
}

func TestAddJobAcceptsCronAndDescriptors(t *testing.T) {
	s := New(zerolog.Nop(), nil)

	require.NoError(t, s.AddJob("@hourly", &recordingJob{name: "a"}))
	require.NoError(t, s.AddJob("@every 15m", &recordingJob{name: "b"}))
	require.NoError(t, s.AddJob("0 6 * * MON-FRI", &recordingJob{name: "c"}))
}

func TestRunNowExecutesJob(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	job := &recordingJob{name: "cleanup"}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	job.err = fmt.Errorf("boom")
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, 2, job.runs)
}

func TestRunRecordsMetrics(t *testing.T) {
	m := metrics.NewRegistry()
	s := New(zerolog.Nop(), m)

	s.run(&recordingJob{name: "cleanup"})
	s.run(&recordingJob{name: "cleanup", err: fmt.Errorf("boom")})

	families, err := m.Gather()
	require.NoError(t, err)

	results := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "verascore_job_runs_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == "result" {
					results[pair.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, results["success"])
	assert.Equal(t, 1.0, results["error"])
}
