package async

import (
	"testing"
	"time"

	"github.com/BaSui01/speechflow/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusTimedOut, true},
		{StatusRunning, StatusPending, false},
		{StatusSucceeded, StatusFailed, false},
		{StatusTimedOut, StatusSucceeded, false},
		{StatusFailed, StatusFailed, false},
		{StatusRunning, StatusRunning, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestJob_TerminalIsFinal(t *testing.T) {
	all := []Status{StatusPending, StatusRunning, StatusSucceeded, StatusFailed, StatusTimedOut}

	rapid.Check(t, func(t *rapid.T) {
		job := newJob("j", time.Now())
		steps := rapid.SliceOf(rapid.SampledFrom(all)).Draw(t, "steps")

		var terminal Status
		for _, s := range steps {
			err := job.transition(s)
			if terminal != "" && err == nil {
				t.Fatalf("transition %s accepted after terminal %s", s, terminal)
			}
			if err == nil && s.IsTerminal() {
				terminal = s
			}
		}
		if terminal != "" && job.Status() != terminal {
			t.Fatalf("status %s, want %s", job.Status(), terminal)
		}
	})
}

func TestJob_SucceedStoresResult(t *testing.T) {
	job := newJob("j", time.Now())
	require.NoError(t, job.succeed(speech.AudioRef{URL: "https://x"}))
	assert.Equal(t, "https://x", job.Result().URL)
	assert.Error(t, job.fail("late"))
	assert.Empty(t, job.Message())
}

func TestStateFromProvider(t *testing.T) {
	assert.Equal(t, StatusPending, stateFromProvider(speech.TaskPending))
	assert.Equal(t, StatusRunning, stateFromProvider(speech.TaskRunning))
	assert.Equal(t, StatusSucceeded, stateFromProvider(speech.TaskSucceeded))
	assert.Equal(t, StatusFailed, stateFromProvider(speech.TaskFailed))
}
