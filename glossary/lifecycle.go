// Package glossary manages the per-language terminology glossary used
// during translation: looking it up, creating it from a CSV source when the
// source covers the language, waiting for the long-running create with a
// timeout, and deleting it.
//
// Resolution is a small state machine:
//
//	UNKNOWN ─┬─> EXISTS                        (usable)
//	         └─> ABSENT ─┬─> SKIPPED           (translate without glossary)
//	                     └─> CREATING ─┬─> READY   (usable)
//	                                   └─> FAILED  (translate without glossary)
//
// A lookup error other than not-found goes straight to FAILED.
package glossary

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DefaultTimeout bounds the wait for a glossary creation.
const DefaultTimeout = 5 * time.Minute

// ---------------------------------------------------------------------------
// Capabilities
// ---------------------------------------------------------------------------

// Glossary describes a backend glossary resource.
type Glossary struct {
	Name       string
	SourceLang string
	TargetLang string
	InputURI   string
	EntryCount int
	SubmitTime time.Time
}

// Spec is the request to create a glossary.
type Spec struct {
	Name       string
	SourceLang string
	TargetLang string
	InputURI   string
}

// Operation is a pending long-running create.
type Operation interface {
	// Name identifies the remote operation.
	Name() string
	// Wait blocks until the operation finishes or ctx is done.
	Wait(ctx context.Context) (*Glossary, error)
	// Cancel asks the backend to stop the operation.
	Cancel(ctx context.Context) error
}

// Backend is the glossary API. Implementations return *APIError so that
// failures can be classified; they must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, name string) (*Glossary, error)
	Create(ctx context.Context, spec Spec) (Operation, error)
	Delete(ctx context.Context, name string) error
}

// SourceInspector reports whether the glossary source file covers a
// target language.
type SourceInspector interface {
	ContainsLanguage(ctx context.Context, lang string) (bool, error)
}

// Uploader stores a glossary source file under object.
type Uploader interface {
	Upload(ctx context.Context, object string, data []byte) error
}

// Clock abstracts timers so tests can expire a wait without sleeping.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// ---------------------------------------------------------------------------
// States
// ---------------------------------------------------------------------------

// State is a node of the resolution state machine.
type State int

const (
	StateUnknown State = iota
	StateExists
	StateAbsent
	StateCreating
	StateReady
	StateSkipped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateExists:
		return "EXISTS"
	case StateAbsent:
		return "ABSENT"
	case StateCreating:
		return "CREATING"
	case StateReady:
		return "READY"
	case StateSkipped:
		return "SKIPPED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Usable reports whether translations may reference the glossary.
func (s State) Usable() bool { return s == StateExists || s == StateReady }

// Terminal reports whether resolution has finished.
func (s State) Terminal() bool {
	switch s {
	case StateExists, StateReady, StateSkipped, StateFailed:
		return true
	}
	return false
}

// Resolution is the outcome of Resolve for one language.
type Resolution struct {
	Lang  string
	Name  string
	State State
	// Path lists every state visited, starting with UNKNOWN.
	Path []State
	// Err is the cause of SKIPPED or FAILED, if any.
	Err error
}

// Usable reports whether the glossary may be used.
func (r Resolution) Usable() bool { return r.State.Usable() }

func (r *Resolution) enter(s State) {
	r.State = s
	r.Path = append(r.Path, s)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Config holds the glossary naming and timing settings.
type Config struct {
	// Parent is the resource prefix, e.g. "projects/p/locations/global".
	Parent string
	// NameFormat builds the glossary ID from the lower-cased language.
	NameFormat string
	// FileFormat builds the source object name from the lower-cased language.
	FileFormat string
	// Bucket holds the glossary source files.
	Bucket string
	// SourceLang is the glossary source language (default "en").
	SourceLang string
	// Timeout bounds the create wait (default DefaultTimeout).
	Timeout time.Duration
	// Clock is used for the create timeout (default: wall clock).
	Clock Clock
	// OnLog emits progress messages.
	OnLog func(format string, args ...any)
	// OnError emits error messages.
	OnError func(format string, args ...any)
}

func (c *Config) log(format string, args ...any) {
	if c.OnLog != nil {
		c.OnLog(format, args...)
	}
}

func (c *Config) logError(format string, args ...any) {
	if c.OnError != nil {
		c.OnError(format, args...)
	} else if c.OnLog != nil {
		c.OnLog(format, args...)
	}
}

// Lifecycle resolves, creates, updates and deletes glossaries.
type Lifecycle struct {
	backend   Backend
	inspector SourceInspector
	cfg       Config
}

// New returns a Lifecycle. inspector may be nil, in which case a missing
// glossary is never created.
func New(backend Backend, inspector SourceInspector, cfg Config) *Lifecycle {
	if cfg.NameFormat == "" {
		cfg.NameFormat = "glossary-%s"
	}
	if cfg.FileFormat == "" {
		cfg.FileFormat = "glossary-%s.csv"
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	return &Lifecycle{backend: backend, inspector: inspector, cfg: cfg}
}

// Name returns the full resource name of the glossary for lang.
func (l *Lifecycle) Name(lang string) string {
	id := fmt.Sprintf(l.cfg.NameFormat, strings.ToLower(lang))
	if l.cfg.Parent == "" {
		return id
	}
	return l.cfg.Parent + "/glossaries/" + id
}

// Object returns the source file object name for lang.
func (l *Lifecycle) Object(lang string) string {
	return fmt.Sprintf(l.cfg.FileFormat, strings.ToLower(lang))
}

// InputURI returns the location the backend reads the source file from.
func (l *Lifecycle) InputURI(lang string) string {
	return fmt.Sprintf("gs://%s/%s", l.cfg.Bucket, l.Object(lang))
}

// Get returns the glossary for lang as the backend reports it.
func (l *Lifecycle) Get(ctx context.Context, lang string) (*Glossary, error) {
	return l.backend.Get(ctx, l.Name(lang))
}

// Resolve drives the state machine for lang to a terminal state. It never
// returns an error: failures end in SKIPPED or FAILED with Err set, and the
// caller translates without a glossary.
func (l *Lifecycle) Resolve(ctx context.Context, lang string) Resolution {
	res := Resolution{Lang: lang, Name: l.Name(lang)}
	res.enter(StateUnknown)

	l.cfg.log("Checking glossary %s", res.Name)
	_, err := l.backend.Get(ctx, res.Name)
	switch Classify(err) {
	case ClassNone:
		l.cfg.log("Glossary %s exists", res.Name)
		res.enter(StateExists)
		return res
	case ClassNotFound:
		res.enter(StateAbsent)
	default:
		l.cfg.logError("Error checking glossary %s: %v", res.Name, err)
		res.Err = err
		res.enter(StateFailed)
		return res
	}

	if l.inspector == nil {
		l.cfg.log("Glossary %s not found and no source configured, continuing without glossary", res.Name)
		res.enter(StateSkipped)
		return res
	}
	ok, err := l.inspector.ContainsLanguage(ctx, lang)
	if err != nil {
		l.cfg.logError("Error reading glossary source for %s: %v", lang, err)
		res.Err = err
		res.enter(StateSkipped)
		return res
	}
	if !ok {
		l.cfg.log("Language %s not in glossary source, continuing without glossary", lang)
		res.enter(StateSkipped)
		return res
	}

	res.enter(StateCreating)
	if err := l.create(ctx, lang, res.Name); err != nil {
		res.Err = err
		res.enter(StateFailed)
		return res
	}
	res.enter(StateReady)
	return res
}

// create submits a create request, waits for it, and verifies the result.
// An already-exists response counts as success.
func (l *Lifecycle) create(ctx context.Context, lang, name string) error {
	if _, err := language.Parse(lang); err != nil {
		l.cfg.logError("Invalid target language code %q", lang)
		return fmt.Errorf("%w %q: %v", ErrInvalidLanguage, lang, err)
	}

	spec := Spec{
		Name:       name,
		SourceLang: l.cfg.SourceLang,
		TargetLang: lang,
		InputURI:   l.InputURI(lang),
	}
	l.cfg.log("Creating glossary %s (%s -> %s, %s)", name, spec.SourceLang, lang, spec.InputURI)

	op, err := l.backend.Create(ctx, spec)
	if err == nil {
		_, err = l.wait(ctx, op, name)
	}
	switch Classify(err) {
	case ClassNone:
	case ClassConflict:
		l.cfg.log("Glossary %s already exists, using it", name)
		return nil
	default:
		l.cfg.logError("Glossary %s creation failed: %s: %v", name, describe(err), err)
		if CodeOf(err) == CodeResourceExhausted {
			return fmt.Errorf("%w: %w", ErrQuota, err)
		}
		return err
	}

	g, err := l.backend.Get(ctx, name)
	if err != nil {
		l.cfg.logError("Glossary %s was created but cannot be retrieved: %v", name, err)
		return fmt.Errorf("verifying glossary %s: %w", name, err)
	}
	l.cfg.log("Glossary %s ready (%d entries)", g.Name, g.EntryCount)
	return nil
}

type waitResult struct {
	g   *Glossary
	err error
}

// wait blocks until op finishes, the timeout elapses, or ctx is done. On
// timeout the remote operation is cancelled before the error is returned.
func (l *Lifecycle) wait(ctx context.Context, op Operation, name string) (*Glossary, error) {
	waitCtx, stop := context.WithCancel(ctx)
	defer stop()

	done := make(chan waitResult, 1)
	go func() {
		g, err := op.Wait(waitCtx)
		done <- waitResult{g, err}
	}()

	select {
	case r := <-done:
		return r.g, r.err
	case <-l.cfg.Clock.After(l.cfg.Timeout):
		stop()
		terr := &TimeoutError{Name: name, After: l.cfg.Timeout}
		// The caller's ctx may be the thing that is about to expire, so the
		// cancel request gets its own short deadline.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := op.Cancel(cctx); err != nil {
			terr.CancelErr = err
		}
		l.cfg.logError("Glossary creation timed out after %s, cancelled operation %s", l.cfg.Timeout, op.Name())
		return nil, terr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Delete removes the glossary for lang. A glossary that does not exist
// counts as deleted.
func (l *Lifecycle) Delete(ctx context.Context, lang string) error {
	name := l.Name(lang)
	l.cfg.log("Deleting glossary %s", name)
	err := l.backend.Delete(ctx, name)
	switch Classify(err) {
	case ClassNone:
		l.cfg.log("Deleted glossary %s", name)
		return nil
	case ClassNotFound:
		l.cfg.log("Glossary %s not found, nothing to delete", name)
		return nil
	default:
		return fmt.Errorf("deleting glossary %s: %w", name, err)
	}
}

// Update replaces the glossary for lang with the contents of csvPath:
// upload the file, delete the existing glossary, create a new one. A
// missing csvPath is skipped with a warning.
func (l *Lifecycle) Update(ctx context.Context, up Uploader, lang, csvPath string) (Resolution, error) {
	res := Resolution{Lang: lang, Name: l.Name(lang)}
	res.enter(StateUnknown)

	data, err := os.ReadFile(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.cfg.logError("Glossary file %s not found, skipping update for %s", csvPath, lang)
			res.enter(StateSkipped)
			return res, nil
		}
		return res, fmt.Errorf("reading %s: %w", csvPath, err)
	}

	object := l.Object(lang)
	l.cfg.log("Uploading %s to %s", csvPath, object)
	if err := up.Upload(ctx, object, data); err != nil {
		return res, fmt.Errorf("uploading glossary source %s: %w", object, err)
	}

	if err := l.Delete(ctx, lang); err != nil {
		return res, err
	}
	res.enter(StateAbsent)

	res.enter(StateCreating)
	if err := l.create(ctx, lang, res.Name); err != nil {
		res.Err = err
		res.enter(StateFailed)
		return res, err
	}
	res.enter(StateReady)
	return res, nil
}
