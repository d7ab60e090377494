package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatElapsed(0))
	assert.Equal(t, "01:02:03", FormatElapsed(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "24:00:00", FormatElapsed(24*time.Hour))
	assert.Equal(t, "1 days, 01:30", FormatElapsed(25*time.Hour+30*time.Minute+10*time.Second))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "0", FormatRate(0, 10*time.Second))
	assert.Equal(t, "< 1", FormatRate(3, 10*time.Second))
	assert.Equal(t, "50", FormatRate(50, 500*time.Millisecond))
	assert.Equal(t, "33", FormatRate(100, 3*time.Second))
}

func TestAction(t *testing.T) {
	assert.Equal(t, "processed", Action(true, true))
	assert.Equal(t, "copied", Action(true, false))
	assert.Equal(t, "deleted", Action(false, false))
}

func TestStoppedError(t *testing.T) {
	var err error = &StoppedError{StoppedAt: 5, Verb: "deleting", Table: "comments"}
	stopped, ok := IsStopped(err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), stopped.StoppedAt)
	assert.Equal(t, "stopped after deleting 5 comments records", err.Error())

	_, ok = IsStopped(ErrConfiguration)
	assert.False(t, ok)
}
