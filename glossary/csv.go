package glossary

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// HeaderContains reports whether the header row of a glossary CSV lists
// lang as a column. Comparison ignores case and surrounding spaces. An
// empty file has no languages.
func HeaderContains(r io.Reader, lang string) (bool, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading glossary header: %w", err)
	}
	want := strings.TrimSpace(lang)
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		if strings.EqualFold(strings.TrimSpace(col), want) {
			return true, nil
		}
	}
	return false, nil
}

// OpenFunc opens the glossary source for lang.
type OpenFunc func(ctx context.Context, lang string) (io.ReadCloser, error)

// CSVInspector is a SourceInspector that reads the header of each
// language's glossary CSV.
type CSVInspector struct {
	Open OpenFunc
}

// ContainsLanguage implements SourceInspector.
func (c CSVInspector) ContainsLanguage(ctx context.Context, lang string) (bool, error) {
	rc, err := c.Open(ctx, lang)
	if err != nil {
		return false, err
	}
	defer rc.Close()
	return HeaderContains(rc, lang)
}
