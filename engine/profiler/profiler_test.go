package profiler

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler_ThrottlesReports(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewProfiler(logger, time.Hour)

	report, ok := p.Tick(logrus.Fields{"groups": 3})
	require.True(t, ok)
	assert.Positive(t, report.FPS)
	assert.Positive(t, report.SysMB)

	for range 10 {
		_, ok = p.Tick(nil)
		assert.False(t, ok)
	}

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, 3, entry.Data["groups"])
	assert.Equal(t, "profiler", entry.Data["component"])
}
