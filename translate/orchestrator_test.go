package translate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/proptrans/cache"
	"github.com/minios-linux/proptrans/glossary"
	"github.com/minios-linux/proptrans/lockfile"
	"github.com/minios-linux/proptrans/propfile"
)

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Translate(ctx context.Context, text, sourceLang, targetLang, glossary string) (string, error) {
	args := m.Called(ctx, text, sourceLang, targetLang, glossary)
	return args.String(0), args.Error(1)
}

type fixedResolver struct {
	res glossary.Resolution
}

func (f fixedResolver) Resolve(ctx context.Context, lang string) glossary.Resolution {
	r := f.res
	r.Lang = lang
	return r
}

func doc(s string) *propfile.Document {
	return propfile.Parse([]byte(s))
}

func TestRun_ChangedKeysAreRetranslated(t *testing.T) {
	store := cache.NewMemory()
	require.NoError(t, store.Save("fr", doc("a=A_fr\nb=Y_fr\n")))

	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "Z", "en", "fr", "").Return("Z_fr", nil)
	tr.On("Translate", mock.Anything, "W", "en", "fr", "").Return("W_fr", nil)

	o := New(tr, nil, store, nil, Options{})
	res, err := o.Run(context.Background(), Task{
		Lang:     "fr",
		Input:    doc("a=X\nb=Z\nc=W\n"),
		Previous: doc("a=X\nb=Y\n"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, res.Changed.Keys())
	assert.Equal(t, "a=A_fr\nb=Z_fr\nc=W_fr\n", string(res.Output.Marshal()))
	assert.Equal(t, 2, res.Translated)
	assert.Equal(t, 1, res.Reused)
	tr.AssertExpectations(t)
	tr.AssertNumberOfCalls(t, "Translate", 2)
}

func TestRun_UnchangedDocumentMakesNoCalls(t *testing.T) {
	src := "# header\na=Hello\n\nb=World \\\n  again\n"
	store := cache.NewMemory()
	require.NoError(t, store.Save("de", doc("# header\na=Hallo\n\nb=Welt \\\n  wieder\n")))

	tr := &mockTranslator{}
	o := New(tr, nil, store, nil, Options{})
	res, err := o.Run(context.Background(), Task{Lang: "de", Input: doc(src), Previous: doc(src)})

	require.NoError(t, err)
	tr.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "# header\na=Hallo\n\nb=Welt \\\n  wieder\n", string(res.Output.Marshal()))
	assert.Equal(t, 2, res.Reused)
}

func TestRun_NoPreviousTranslatesEverything(t *testing.T) {
	store := cache.NewMemory()
	require.NoError(t, store.Save("fr", doc("a=stale\n")))

	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "X", "en", "fr", "").Return("X_fr", nil)

	res, err := New(tr, nil, store, nil, Options{}).Run(context.Background(), Task{Lang: "fr", Input: doc("a=X\n")})

	require.NoError(t, err)
	assert.Equal(t, "a=X_fr\n", string(res.Output.Marshal()))
}

func TestRun_UnchangedButUncachedIsTranslated(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "X", "en", "fr", "").Return("X_fr", nil)

	src := doc("a=X\n")
	res, err := New(tr, nil, cache.NewMemory(), nil, Options{}).Run(context.Background(), Task{Lang: "fr", Input: src, Previous: src})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Translated)
}

func TestRun_PartialFailureKeepsOriginal(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "one", "en", "es", "").Return("uno", nil)
	tr.On("Translate", mock.Anything, "two", "en", "es", "").Return("", errors.New("bad request"))
	tr.On("Translate", mock.Anything, "three", "en", "es", "").Return("tres", nil)

	input := doc("a=one\nb=two\nc=three\n")
	res, err := New(tr, nil, cache.NewMemory(), nil, Options{}).Run(context.Background(), Task{Lang: "es", Input: input})

	require.NoError(t, err)
	require.Equal(t, input.Len(), res.Output.Len())
	assert.True(t, res.Output.At(1).Equal(input.At(1)))
	assert.Equal(t, "a=uno\nb=two\nc=tres\n", string(res.Output.Marshal()))
	assert.Equal(t, []string{"b"}, res.FailedKeys)
}

func TestRun_RebuildsContinuationLayout(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "Hello World", "en", "fr", "").Return("Bonjour le monde", nil)

	res, err := New(tr, nil, cache.NewMemory(), nil, Options{}).Run(context.Background(), Task{
		Lang:  "fr",
		Input: doc("greeting=Hello \\\n  World\n"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"greeting=Bonjou \\", "  r le monde"}, res.Output.At(0).Lines)
}

func TestRun_DuplicateKeysCopiedThrough(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "first", "en", "fr", "").Return("premier", nil)

	res, err := New(tr, nil, cache.NewMemory(), nil, Options{}).Run(context.Background(), Task{
		Lang:  "fr",
		Input: doc("k=first\nk=second\n"),
	})

	require.NoError(t, err)
	assert.Equal(t, "k=premier\nk=second\n", string(res.Output.Marshal()))
	assert.Equal(t, []string{"k"}, res.Duplicates)
	tr.AssertNumberOfCalls(t, "Translate", 1)
}

func TestRun_KeylessLineIsCopied(t *testing.T) {
	tr := &mockTranslator{}
	res, err := New(tr, nil, cache.NewMemory(), nil, Options{}).Run(context.Background(), Task{
		Lang:  "fr",
		Input: doc("orphan\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "orphan\n", string(res.Output.Marshal()))
	tr.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_LineWithoutSeparatorBelongsToProperty(t *testing.T) {
	store := cache.NewMemory()
	require.NoError(t, store.Save("fr", doc("a=Salut\n  toi\n")))

	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "Hi\n  everyone", "en", "fr", "").Return("Salut\n  tout le monde", nil)

	res, err := New(tr, nil, store, nil, Options{}).Run(context.Background(), Task{
		Lang:     "fr",
		Input:    doc("a=Hi\n  everyone\n"),
		Previous: doc("a=Hi\n  there\n"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Changed.Keys())
	assert.Equal(t, "a=Salut\n  tout le monde\n", string(res.Output.Marshal()))
	tr.AssertExpectations(t)
}

func TestRun_UsesGlossaryWhenUsable(t *testing.T) {
	name := "projects/p/locations/global/glossaries/glossary-fr"
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "file", "en", "fr", name).Return("fichier", nil)

	resolver := fixedResolver{res: glossary.Resolution{Name: name, State: glossary.StateReady}}
	res, err := New(tr, resolver, cache.NewMemory(), nil, Options{}).Run(context.Background(), Task{Lang: "fr", Input: doc("a=file\n")})

	require.NoError(t, err)
	assert.Equal(t, glossary.StateReady, res.Glossary.State)
	tr.AssertExpectations(t)
}

func TestRun_FailedGlossaryDegradesToPlain(t *testing.T) {
	var errs []string
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "file", "en", "fr", "").Return("fichier", nil)

	resolver := fixedResolver{res: glossary.Resolution{
		Name:  "g",
		State: glossary.StateFailed,
		Err:   &glossary.TimeoutError{Name: "g", After: time.Minute},
	}}
	lf := &lockfile.LockFile{}
	o := New(tr, resolver, cache.NewMemory(), lf, Options{
		OnError: func(f string, a ...any) { errs = append(errs, fmt.Sprintf(f, a...)) },
	})
	_, err := o.Run(context.Background(), Task{Lang: "fr", Input: doc("a=file\n")})

	require.NoError(t, err)
	tr.AssertExpectations(t)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "timed out")
	g, ok := lf.Glossary("fr")
	require.True(t, ok)
	assert.Equal(t, "FAILED", g.State)
}

func TestRun_TranslatorUnavailableAborts(t *testing.T) {
	store := cache.NewMemory()
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("401 unauthorized: %w", ErrTranslatorUnavailable))

	_, err := New(tr, nil, store, nil, Options{}).Run(context.Background(), Task{Lang: "fr", Input: doc("a=1\nb=2\n")})

	assert.ErrorIs(t, err, ErrTranslatorUnavailable)
	_, ok, _ := store.Load("fr")
	assert.False(t, ok, "cache must not be written")
	tr.AssertNumberOfCalls(t, "Translate", 1)
}

func TestRun_RetriesAfterRateLimit(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "x", "en", "fr", "").
		Return("", &RateLimitError{RetryAfter: time.Millisecond}).Once()
	tr.On("Translate", mock.Anything, "x", "en", "fr", "").Return("x_fr", nil).Once()

	res, err := New(tr, nil, cache.NewMemory(), nil, Options{}).Run(context.Background(), Task{Lang: "fr", Input: doc("a=x\n")})

	require.NoError(t, err)
	assert.Equal(t, "a=x_fr\n", string(res.Output.Marshal()))
	tr.AssertNumberOfCalls(t, "Translate", 2)
}

func TestRun_RateLimitExhaustedIsEntryFailure(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "x", "en", "fr", "").Return("", &RateLimitError{})

	res, err := New(tr, nil, cache.NewMemory(), nil, Options{MaxRetries: 2}).Run(context.Background(), Task{Lang: "fr", Input: doc("a=x\n")})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	tr.AssertNumberOfCalls(t, "Translate", 3)
}

func TestRun_EmptyInputIsSkipped(t *testing.T) {
	store := cache.NewMemory()
	res, err := New(&mockTranslator{}, nil, store, nil, Options{}).Run(context.Background(), Task{Lang: "fr", Input: doc("")})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	_, ok, _ := store.Load("fr")
	assert.False(t, ok)
}

func TestRun_ExistingOutputSeedsCache(t *testing.T) {
	tr := &mockTranslator{}
	src := doc("a=X\n")
	res, err := New(tr, nil, cache.NewMemory(), nil, Options{}).Run(context.Background(), Task{
		Lang:     "fr",
		Input:    src,
		Previous: src,
		Existing: doc("a=X_fr\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "a=X_fr\n", string(res.Output.Marshal()))
	tr.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_WritesCacheAndOutputFiles(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewFileStore(filepath.Join(dir, "cache"))
	out := filepath.Join(dir, "i18n", "messages_fr.properties")

	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, "Hi", "en", "fr", "").Return("Salut", nil)

	_, err := New(tr, nil, store, nil, Options{}).Run(context.Background(), Task{
		Lang:       "fr",
		Input:      doc("# c\r\na=Hi"),
		OutputPath: out,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "# c\r\na=Salut", string(data))

	cached, ok, err := store.Load("fr")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, cached.Marshal())
}

func TestRun_FailedKeyIsRetriedNextRun(t *testing.T) {
	lf := &lockfile.LockFile{}
	store := cache.NewMemory()
	src := doc("a=one\nb=two\n")

	first := &mockTranslator{}
	first.On("Translate", mock.Anything, "one", "en", "fr", "").Return("un", nil)
	first.On("Translate", mock.Anything, "two", "en", "fr", "").Return("", errors.New("boom"))
	_, err := New(first, nil, store, lf, Options{}).Run(context.Background(), Task{Lang: "fr", Input: src})
	require.NoError(t, err)

	second := &mockTranslator{}
	second.On("Translate", mock.Anything, "two", "en", "fr", "").Return("deux", nil)
	res, err := New(second, nil, store, lf, Options{}).Run(context.Background(), Task{Lang: "fr", Input: src, Previous: src})

	require.NoError(t, err)
	assert.Equal(t, "a=un\nb=deux\n", string(res.Output.Marshal()))
	second.AssertNumberOfCalls(t, "Translate", 1)
	assert.Empty(t, lf.ChangedKeys("fr", src))
}

func TestRun_LockWithoutLanguageRecordKeepsCache(t *testing.T) {
	lf, err := lockfile.Load(t.TempDir())
	require.NoError(t, err)
	store := cache.NewMemory()
	require.NoError(t, store.Save("fr", doc("a=X_fr\nb=Y_fr\n")))
	src := doc("a=X\nb=Y\n")

	tr := &mockTranslator{}
	res, err := New(tr, nil, store, lf, Options{}).Run(context.Background(), Task{Lang: "fr", Input: src, Previous: src})

	require.NoError(t, err)
	assert.Empty(t, res.Changed.Keys())
	assert.Equal(t, "a=X_fr\nb=Y_fr\n", string(res.Output.Marshal()))
	tr.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.True(t, lf.HasLanguage("fr"))
	assert.Empty(t, lf.ChangedKeys("fr", src))
}

func TestRun_ReportsProgress(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, mock.Anything, "en", "fr", "").Return("t", nil)

	var calls [][2]int
	o := New(tr, nil, cache.NewMemory(), nil, Options{
		OnProgress: func(lang string, done, total int) { calls = append(calls, [2]int{done, total}) },
	})
	_, err := o.Run(context.Background(), Task{Lang: "fr", Input: doc("# c\na=1\nb=2\n")})

	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := TranslatorFunc(func(ctx context.Context, text, s, t, g string) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	_, err := New(tr, nil, cache.NewMemory(), nil, Options{}).Run(ctx, Task{Lang: "fr", Input: doc("a=1\n")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunAll_AggregatesFailures(t *testing.T) {
	var mu sync.Mutex
	var logged []string
	tr := TranslatorFunc(func(ctx context.Context, text, source, target, g string) (string, error) {
		if target == "de" {
			return "", ErrTranslatorUnavailable
		}
		return text + "_" + target, nil
	})

	store := cache.NewMemory()
	o := New(tr, nil, store, nil, Options{
		MaxConcurrent: 2,
		OnLog: func(f string, a ...any) {
			mu.Lock()
			logged = append(logged, fmt.Sprintf(f, a...))
			mu.Unlock()
		},
	})
	input := doc("a=x\n")
	results, err := o.RunAll(context.Background(), []Task{
		{Lang: "fr", Input: input},
		{Lang: "de", Input: input},
		{Lang: "es", Input: input},
	})

	require.EqualError(t, err, "1 language(s) failed: de")
	require.Len(t, results, 3)
	assert.Nil(t, results[1])
	assert.Equal(t, "a=x_fr\n", string(results[0].Output.Marshal()))
	assert.Equal(t, "a=x_es\n", string(results[2].Output.Marshal()))
	_, ok, _ := store.Load("de")
	assert.False(t, ok)
	assert.NotEmpty(t, logged)
}

func TestRunAll_Sequential(t *testing.T) {
	var order []string
	tr := TranslatorFunc(func(ctx context.Context, text, source, target, g string) (string, error) {
		order = append(order, target)
		return text, nil
	})
	o := New(tr, nil, cache.NewMemory(), nil, Options{})
	_, err := o.RunAll(context.Background(), []Task{
		{Lang: "a", Input: doc("k=v\n")},
		{Lang: "b", Input: doc("k=v\n")},
		{Lang: "c", Input: doc("k=v\n")},
	})
	require.NoError(t, err)
	assert.Len(t, order, 3)
}
