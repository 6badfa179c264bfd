package domain

import "testing"

func TestClampPosition(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		duration float64
		expected float64
	}{
		{name: "Inside range", position: 42, duration: 180, expected: 42},
		{name: "Before start", position: -15, duration: 180, expected: 0},
		{name: "Past end", position: 500, duration: 180, expected: 179},
		{name: "Exactly at end", position: 180, duration: 180, expected: 179},
		{name: "Unknown duration", position: 500, duration: 0, expected: 500},
		{name: "Shorter than margin", position: 3, duration: 0.5, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampPosition(tt.position, tt.duration)
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
			if tt.duration > 0 && (got < 0 || got >= tt.duration) {
				t.Errorf("position %v outside [0, %v)", got, tt.duration)
			}
		})
	}
}

func TestStatusKindTerminal(t *testing.T) {
	terminal := []StatusKind{StatusFinished, StatusError, StatusCouldNotPlay}
	for _, k := range terminal {
		if !k.Terminal() {
			t.Errorf("%s should be terminal", k)
		}
	}
	for _, k := range []StatusKind{StatusPaused, StatusResumed, StatusUpdatedTiming, StatusIdle, StatusStarted} {
		if k.Terminal() {
			t.Errorf("%s should not be terminal", k)
		}
	}
}
