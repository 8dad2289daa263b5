package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := Policy{Backoff: 30 * time.Second, MaxBackoff: 300 * time.Second}
	want := []time.Duration{0, 30 * time.Second, 60 * time.Second, 120 * time.Second, 240 * time.Second, 300 * time.Second, 300 * time.Second}
	for failures, expected := range want {
		assert.Equal(t, expected, p.backoff(failures), "backoff(%d)", failures)
	}
	assert.Zero(t, (Policy{}).backoff(3), "zero policy backoff")
}

func TestResumeStates(t *testing.T) {
	cases := map[State]State{
		StateQueued:         StateQueued,
		StateSessionReady:   StateSessionReady,
		StateFileReady:      StateFileReady,
		StateFormOpened:     StateFileReady,
		StateMetadataFilled: StateFileReady,
		StateTogglesApplied: StateFileReady,
		StateSubmitted:      StateSubmitted,
	}
	for from, want := range cases {
		assert.Equal(t, want, resumeState(from), "resumeState(%s)", from)
	}
}
