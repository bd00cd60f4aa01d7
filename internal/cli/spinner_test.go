package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/stackbom/pkg/observability"
)

// quietUI discards status output for the duration of a test.
func quietUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := uiOut
	uiOut = &buf
	t.Cleanup(func() { uiOut = prev })
	return &buf
}

func TestSpinnerBasic(t *testing.T) {
	out := quietUI(t)
	s := newSpinner("Testing...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if s.Cancelled() {
		t.Error("Stop() should not count as cancellation")
	}
	if !strings.Contains(out.String(), "Testing...") {
		t.Errorf("spinner output = %q, want the message", out.String())
	}
}

func TestSpinnerWithContext(t *testing.T) {
	quietUI(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Testing with context...")
	s.Start()
	cancel()
	time.Sleep(50 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
	s.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	quietUI(t)
	s := newSpinner("Testing idempotent stop...")
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopBeforeStart(t *testing.T) {
	quietUI(t)
	done := make(chan struct{})
	go func() {
		newSpinner("never started").Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() before Start() blocked")
	}
}

func TestSpinnerStopWithMessages(t *testing.T) {
	out := quietUI(t)

	s := newSpinner("Working...")
	s.Start()
	s.StopWithSuccess("Done!")

	s = newSpinner("Working...")
	s.Start()
	s.StopWithError("Failed!")

	for _, want := range []string{"Done!", "Failed!"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q: %q", want, out.String())
		}
	}
}

func TestTrackExtraction(t *testing.T) {
	quietUI(t)
	t.Cleanup(observability.Reset)

	s := newSpinner("Scanning...")
	stop := trackExtraction(s, 2)

	ctx := context.Background()
	observability.Pipeline().OnExtractComplete(ctx, "go.mod", "svc/go.mod", 3, time.Millisecond, nil)
	if got, want := s.Message(), "Extracted go.mod (1/2)"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
	observability.Pipeline().OnExtractComplete(ctx, "package-lock.json", "package-lock.json", 0, time.Millisecond, errors.New("bad"))
	if got, want := s.Message(), "Extracted package-lock.json (2/2)"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}

	stop()
	if _, ok := observability.Pipeline().(*extractProgress); ok {
		t.Error("stop() should restore the previous hooks")
	}
}
