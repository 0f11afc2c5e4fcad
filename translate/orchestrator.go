package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/minios-linux/proptrans/cache"
	"github.com/minios-linux/proptrans/changeset"
	"github.com/minios-linux/proptrans/glossary"
	"github.com/minios-linux/proptrans/lockfile"
	"github.com/minios-linux/proptrans/propfile"
)

// GlossaryResolver decides whether a glossary can be used for a language.
// *glossary.Lifecycle implements it.
type GlossaryResolver interface {
	Resolve(ctx context.Context, lang string) glossary.Resolution
}

// Task is the work for one target language.
type Task struct {
	// Lang is the target language code.
	Lang string
	// LangName is a human-readable name used in log messages.
	LangName string
	// Input is the current source document.
	Input *propfile.Document
	// Previous is the source document of the last run, or nil when there
	// is none; then every property is treated as changed.
	Previous *propfile.Document
	// Existing is the translated output file as it is on disk, or nil. It
	// seeds the cache when no cache exists yet.
	Existing *propfile.Document
	// OutputPath is where the translated document is written. Empty means
	// the caller writes Result.Output itself.
	OutputPath string
}

// Result reports what a run did for one language.
type Result struct {
	Lang     string
	Output   *propfile.Document
	Glossary glossary.Resolution
	// Changed is the change set the run worked from.
	Changed changeset.Set
	// Translated, Reused and Failed count property entries.
	Translated int
	Reused     int
	Failed     int
	// FailedKeys lists the keys whose original entry was copied through
	// after a translation error.
	FailedKeys []string
	// Duplicates lists repeated keys that were copied through unmodified.
	Duplicates []string
	// Skipped is set when the input had no entries.
	Skipped bool
}

// Orchestrator runs translations for target languages.
type Orchestrator struct {
	translator Translator
	glossaries GlossaryResolver
	cache      cache.Store
	lock       *lockfile.LockFile
	opts       Options
	rl         *rateLimitState
}

// New returns an Orchestrator. glossaries and lock may be nil.
//
// When lock has a record for the language, keys it does not record as
// translated are handled as changed even if the previous document has them
// unchanged, so entries that failed in an earlier run are retried.
func New(tr Translator, glossaries GlossaryResolver, store cache.Store, lock *lockfile.LockFile, opts Options) *Orchestrator {
	return &Orchestrator{
		translator: tr,
		glossaries: glossaries,
		cache:      store,
		lock:       lock,
		opts:       opts,
		rl:         &rateLimitState{},
	}
}

// Run translates task.Input into task.Lang.
//
// Comments and blank lines are copied. A property is reused from the
// cache when its key is unchanged and cached; otherwise it is flattened,
// translated and rebuilt onto its original line layout. An entry whose
// translation fails is copied through untranslated. Only cancellation and
// ErrTranslatorUnavailable end the run early with an error, in which case
// neither the cache nor the output file is written.
func (o *Orchestrator) Run(ctx context.Context, task Task) (*Result, error) {
	opts := &o.opts
	res := &Result{Lang: task.Lang}

	if task.Input.Len() == 0 {
		opts.log("Source for %s has no entries, skipping", task.Lang)
		res.Skipped = true
		return res, nil
	}

	glossaryName := ""
	if o.glossaries != nil {
		res.Glossary = o.glossaries.Resolve(ctx, task.Lang)
		if res.Glossary.Usable() {
			glossaryName = res.Glossary.Name
		} else if res.Glossary.Err != nil {
			opts.logError("Glossary unavailable for %s, translating without it: %v", task.Lang, res.Glossary.Err)
		}
		if o.lock != nil {
			o.lock.SetGlossary(task.Lang, res.Glossary.Name, res.Glossary.State.String())
		}
	}

	if task.Previous != nil {
		res.Changed = changeset.Diff(task.Previous, task.Input)
	} else {
		res.Changed = changeset.All(task.Input)
	}
	// Without a record for the language the lock knows nothing about
	// earlier failures, and the diff alone decides.
	if o.lock != nil && task.Previous != nil && o.lock.HasLanguage(task.Lang) {
		for _, key := range o.lock.ChangedKeys(task.Lang, task.Input) {
			if !res.Changed.Has(key) {
				res.Changed[key] = changeset.Modified
			}
		}
	}

	cached, err := o.loadCache(task)
	if err != nil {
		return nil, err
	}

	source := opts.effectiveSourceLang()
	_, total, _ := task.Input.Stats()
	seen := make(map[string]bool)
	entries := task.Input.Entries()
	out := make([]propfile.Entry, 0, len(entries))
	done := 0

	for _, e := range entries {
		if e.Kind != propfile.KindProperty {
			out = append(out, e)
			continue
		}
		done++

		switch {
		case seen[e.Key]:
			opts.log("Duplicate key %q in source, copying it unchanged", e.Key)
			res.Duplicates = append(res.Duplicates, e.Key)
			out = append(out, e)

		case !res.Changed.Has(e.Key) && hasEntry(cached, e.Key):
			opts.debug("  reuse %s", e.Key)
			out = append(out, cached[e.Key])
			res.Reused++

		default:
			key, text := propfile.Flatten(e)
			if text == "" {
				out = append(out, e)
				break
			}
			opts.debug("  translate %s", e.Key)
			translated, err := call(ctx, o.translator, o.rl, text, source, task.Lang, glossaryName, opts)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if errors.Is(err, ErrTranslatorUnavailable) {
					return nil, fmt.Errorf("translating %s: %w", task.Lang, err)
				}
				opts.logError("Error translating %q to %s, keeping source text: %v", e.Key, task.Lang, err)
				res.Failed++
				res.FailedKeys = append(res.FailedKeys, e.Key)
				out = append(out, e)
				break
			}
			out = append(out, propfile.Rebuild(key, e.Lines, translated))
			res.Translated++
		}
		seen[e.Key] = true

		if opts.OnProgress != nil {
			opts.OnProgress(task.Lang, done, total)
		}
	}

	res.Output = task.Input.Derive(out)
	if err := o.cache.Save(task.Lang, res.Output); err != nil {
		return nil, err
	}
	if task.OutputPath != "" {
		if err := cache.WriteAtomic(task.OutputPath, res.Output.Marshal()); err != nil {
			return nil, fmt.Errorf("writing %s: %w", task.OutputPath, err)
		}
	}
	if o.lock != nil {
		o.lock.Record(task.Lang, task.Input)
		if len(res.FailedKeys) > 0 {
			o.lock.Clean(task.Lang, without(task.Input.Keys(), res.FailedKeys))
		}
	}
	return res, nil
}

// loadCache returns the cached properties for the task's language,
// falling back to the existing output file when no cache exists.
func (o *Orchestrator) loadCache(task Task) (map[string]propfile.Entry, error) {
	doc, ok, err := o.cache.Load(task.Lang)
	if err != nil {
		return nil, err
	}
	if !ok && task.Existing != nil {
		o.opts.debug("  no cache for %s, seeding from existing output", task.Lang)
		doc = task.Existing
	}
	return doc.Properties(), nil
}

func hasEntry(m map[string]propfile.Entry, key string) bool {
	_, ok := m[key]
	return ok
}

func without(keys, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, k := range drop {
		skip[k] = true
	}
	var out []string
	for _, k := range keys {
		if !skip[k] {
			out = append(out, k)
		}
	}
	return out
}
