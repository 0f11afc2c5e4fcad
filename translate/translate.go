// Package translate produces translated .properties documents for target
// languages. It reuses the cached output of earlier runs for entries whose
// source did not change, sends the rest through a Translator, and maps
// each translated string back onto the source entry's line layout.
package translate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Translator capability
// ---------------------------------------------------------------------------

// Translator translates a single flat string. glossary is the full
// resource name of a glossary to apply, or empty for plain translation.
// Implementations must be safe for concurrent use.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang, glossary string) (string, error)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, text, sourceLang, targetLang, glossary string) (string, error)

// Translate implements Translator.
func (f TranslatorFunc) Translate(ctx context.Context, text, sourceLang, targetLang, glossary string) (string, error) {
	return f(ctx, text, sourceLang, targetLang, glossary)
}

// ErrTranslatorUnavailable marks failures that make any translation for a
// language impossible, such as rejected credentials or an unreachable
// endpoint. Translators wrap it; it aborts the language's run.
var ErrTranslatorUnavailable = errors.New("translator unavailable")

// RateLimitError asks the caller to wait before the next request.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Translation options
// ---------------------------------------------------------------------------

// Options controls the translation behavior.
type Options struct {
	// SourceLang is the language of the input documents (default "en").
	SourceLang string
	// MaxConcurrent is the number of languages translated at once by
	// RunAll. Default: 1 (sequential).
	MaxConcurrent int
	// MaxRetries is the maximum number of retries of one entry after a
	// rate limit response. Default: 3.
	MaxRetries int
	// OnProgress is called after each property entry is processed.
	OnProgress func(lang string, done, total int)
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits error messages during translation.
	OnError func(format string, args ...any)
	// Verbose enables per-entry logging.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) debug(format string, args ...any) {
	if o.Verbose {
		o.log(format, args...)
	}
}

func (o *Options) effectiveSourceLang() string {
	if o.SourceLang != "" {
		return o.SourceLang
	}
	return "en"
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return 3
}

func (o *Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	return 1
}

// ---------------------------------------------------------------------------
// Rate limit state (global pause for parallel workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := time.Now().Add(duration)
	if end.After(r.pauseEnd) {
		r.pauseEnd = end
	}
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// call sends one text to the translator, retrying after rate limit
// responses. While one worker waits out a rate limit, all workers sharing
// rl pause.
func call(ctx context.Context, tr Translator, rl *rateLimitState, text, source, target, glossary string, opts *Options) (string, error) {
	maxRetries := opts.effectiveMaxRetries()
	for attempt := 0; ; attempt++ {
		if err := rl.waitIfPaused(ctx); err != nil {
			return "", err
		}
		out, err := tr.Translate(ctx, text, source, target, glossary)
		if err == nil {
			return out, nil
		}
		var rle *RateLimitError
		if !errors.As(err, &rle) || attempt >= maxRetries {
			return "", err
		}
		opts.debug("  rate limited, waiting %s (attempt %d/%d)", rle.RetryAfter, attempt+1, maxRetries)
		rl.pause(rle.RetryAfter)
	}
}
