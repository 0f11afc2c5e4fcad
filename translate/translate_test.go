package translate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	var o Options
	if got := o.effectiveSourceLang(); got != "en" {
		t.Errorf("effectiveSourceLang = %q, want en", got)
	}
	if got := o.effectiveMaxRetries(); got != 3 {
		t.Errorf("effectiveMaxRetries = %d, want 3", got)
	}
	if got := o.effectiveMaxConcurrent(); got != 1 {
		t.Errorf("effectiveMaxConcurrent = %d, want 1", got)
	}

	o = Options{SourceLang: "de", MaxRetries: 5, MaxConcurrent: 4}
	if o.effectiveSourceLang() != "de" || o.effectiveMaxRetries() != 5 || o.effectiveMaxConcurrent() != 4 {
		t.Errorf("explicit options not honoured: %+v", o)
	}
}

func TestLogErrorFallsBackToOnLog(t *testing.T) {
	var got string
	o := Options{OnLog: func(f string, a ...any) { got = f }}
	o.logError("boom")
	if got != "boom" {
		t.Errorf("logError via OnLog = %q", got)
	}

	// Nil hooks must not panic.
	var quiet Options
	quiet.log("x")
	quiet.logError("y")
	quiet.debug("z")
}

func TestDebugOnlyWhenVerbose(t *testing.T) {
	n := 0
	o := Options{OnLog: func(string, ...any) { n++ }}
	o.debug("hidden")
	o.Verbose = true
	o.debug("shown")
	if n != 1 {
		t.Errorf("debug calls logged = %d, want 1", n)
	}
}

func TestRateLimitState_PauseAndWait(t *testing.T) {
	rl := &rateLimitState{}
	if rl.isPaused() {
		t.Fatal("new state should not be paused")
	}

	rl.pause(20 * time.Millisecond)
	if !rl.isPaused() {
		t.Fatal("state should be paused")
	}

	start := time.Now()
	if err := rl.waitIfPaused(context.Background()); err != nil {
		t.Fatalf("waitIfPaused: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("waitIfPaused returned after %v, expected to wait", elapsed)
	}
	if rl.isPaused() {
		t.Error("state should be unpaused after the pause elapsed")
	}
}

func TestRateLimitState_WaitHonoursContext(t *testing.T) {
	rl := &rateLimitState{}
	rl.pause(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.waitIfPaused(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("waitIfPaused = %v, want context.Canceled", err)
	}
}

func TestRateLimitState_LongerPauseWins(t *testing.T) {
	rl := &rateLimitState{}
	rl.pause(time.Hour)
	rl.pause(time.Millisecond)
	if time.Until(rl.pauseEnd) < time.Minute {
		t.Error("a shorter pause must not shorten an active one")
	}
}

func TestRateLimitError(t *testing.T) {
	base := errors.New("429")
	err := error(&RateLimitError{RetryAfter: time.Second, Err: base})
	if !errors.Is(err, base) {
		t.Error("RateLimitError should unwrap to its cause")
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.RetryAfter != time.Second {
		t.Errorf("errors.As = %+v", rle)
	}
}
