package core

import (
	"testing"
	"time"
)

func TestLoaderMessageRotates(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "Reading the colors of your spirit..."},
		{2499 * time.Millisecond, "Reading the colors of your spirit..."},
		{2500 * time.Millisecond, "Listening to your silent story..."},
		{5 * time.Second, "Translating your unique expression..."},
		{7500 * time.Millisecond, "Reading the colors of your spirit..."},
		{-time.Second, "Reading the colors of your spirit..."},
	}
	for _, tt := range tests {
		if got := LoaderMessage(StepDetecting, tt.elapsed); got != tt.want {
			t.Errorf("LoaderMessage(%v) = %q, want %q", tt.elapsed, got, tt.want)
		}
	}
}

func TestLoaderMessageUnknownStep(t *testing.T) {
	if got := LoaderMessage("Warming up...", time.Minute); got != "Warming up..." {
		t.Errorf("expected the step label itself, got %q", got)
	}
}

func TestLoaderMessagesPerStep(t *testing.T) {
	for _, step := range []string{StepDetecting, StepCrafting, StepPainting} {
		if len(loaderMessages[step]) != 3 {
			t.Errorf("step %q: expected 3 messages, got %d", step, len(loaderMessages[step]))
		}
	}
}
