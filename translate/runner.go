package translate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RunAll runs tasks with at most Options.MaxConcurrent languages in
// flight. A failing language does not stop the others; failures are
// reported together once every task has finished. Results are returned in
// task order; the entry of a failed language is nil.
func (o *Orchestrator) RunAll(ctx context.Context, tasks []Task) ([]*Result, error) {
	opts := &o.opts
	results := make([]*Result, len(tasks))

	var g errgroup.Group
	g.SetLimit(opts.effectiveMaxConcurrent())

	var failedMu sync.Mutex
	var failedLangs []string

	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		i, task := i, task
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			name := task.LangName
			if name == "" {
				name = task.Lang
			}
			_, props, _ := task.Input.Stats()
			opts.log("Translating %s (%s), %d keys...", task.Lang, name, props)

			res, err := o.Run(ctx, task)
			if err != nil {
				if ctx.Err() == nil {
					opts.logError("Error translating %s: %v", task.Lang, err)
					failedMu.Lock()
					failedLangs = append(failedLangs, task.Lang)
					failedMu.Unlock()
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if len(failedLangs) > 0 {
		sort.Strings(failedLangs)
		return results, fmt.Errorf("%d language(s) failed: %s", len(failedLangs), strings.Join(failedLangs, ", "))
	}
	return results, nil
}
