// Package gcp adapts Google Cloud Translation v3 and Cloud Storage to the
// translator and glossary interfaces of proptrans.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	translateapi "cloud.google.com/go/translate/apiv3"
	"cloud.google.com/go/translate/apiv3/translatepb"

	"github.com/minios-linux/proptrans/glossary"
)

// Client talks to the Cloud Translation v3 API. It implements
// translate.Translator and glossary.Backend.
type Client struct {
	tc     *translateapi.TranslationClient
	parent string
}

// NewClient connects with application default credentials. parent is
// "projects/<id>/locations/<location>".
func NewClient(ctx context.Context, parent string) (*Client, error) {
	tc, err := translateapi.NewTranslationClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating translation client: %w", err)
	}
	return &Client{tc: tc, parent: parent}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.tc.Close()
}

// Translate implements translate.Translator.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang, glossaryName string) (string, error) {
	req := &translatepb.TranslateTextRequest{
		Parent:             c.parent,
		MimeType:           "text/plain",
		SourceLanguageCode: sourceLang,
		TargetLanguageCode: targetLang,
		Contents:           []string{text},
	}
	if glossaryName != "" {
		req.GlossaryConfig = &translatepb.TranslateTextGlossaryConfig{Glossary: glossaryName}
	}
	resp, err := c.tc.TranslateText(ctx, req)
	if err != nil {
		return "", translateError(err)
	}
	return pickTranslation(resp, glossaryName != "")
}

// pickTranslation prefers the glossary translation when one was requested.
func pickTranslation(resp *translatepb.TranslateTextResponse, withGlossary bool) (string, error) {
	if withGlossary {
		if gt := resp.GetGlossaryTranslations(); len(gt) > 0 {
			return strings.TrimSpace(gt[0].GetTranslatedText()), nil
		}
	}
	if t := resp.GetTranslations(); len(t) > 0 {
		return strings.TrimSpace(t[0].GetTranslatedText()), nil
	}
	return "", errors.New("empty translation response")
}

// ---------------------------------------------------------------------------
// glossary.Backend
// ---------------------------------------------------------------------------

// Get implements glossary.Backend.
func (c *Client) Get(ctx context.Context, name string) (*glossary.Glossary, error) {
	g, err := c.tc.GetGlossary(ctx, &translatepb.GetGlossaryRequest{Name: name})
	if err != nil {
		return nil, apiError("get", err)
	}
	return fromProto(g), nil
}

// Create implements glossary.Backend.
func (c *Client) Create(ctx context.Context, spec glossary.Spec) (glossary.Operation, error) {
	parent := spec.Name
	if i := strings.Index(parent, "/glossaries/"); i >= 0 {
		parent = parent[:i]
	} else {
		parent = c.parent
	}
	op, err := c.tc.CreateGlossary(ctx, &translatepb.CreateGlossaryRequest{
		Parent:   parent,
		Glossary: toProto(spec),
	})
	if err != nil {
		return nil, apiError("create", err)
	}
	return &createOperation{
		op: op,
		cancel: func(ctx context.Context, name string) error {
			return c.tc.LROClient.CancelOperation(ctx, &longrunningpb.CancelOperationRequest{Name: name})
		},
	}, nil
}

// Delete implements glossary.Backend. It waits for the delete operation.
func (c *Client) Delete(ctx context.Context, name string) error {
	op, err := c.tc.DeleteGlossary(ctx, &translatepb.DeleteGlossaryRequest{Name: name})
	if err != nil {
		return apiError("delete", err)
	}
	if _, err := op.Wait(ctx); err != nil {
		return apiError("delete", err)
	}
	return nil
}

type createOperation struct {
	op     *translateapi.CreateGlossaryOperation
	cancel func(ctx context.Context, name string) error
}

func (o *createOperation) Name() string { return o.op.Name() }

func (o *createOperation) Wait(ctx context.Context) (*glossary.Glossary, error) {
	g, err := o.op.Wait(ctx)
	if err != nil {
		return nil, apiError("create", err)
	}
	return fromProto(g), nil
}

func (o *createOperation) Cancel(ctx context.Context) error {
	if err := o.cancel(ctx, o.op.Name()); err != nil {
		return apiError("cancel", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

func toProto(spec glossary.Spec) *translatepb.Glossary {
	return &translatepb.Glossary{
		Name: spec.Name,
		Languages: &translatepb.Glossary_LanguagePair{
			LanguagePair: &translatepb.Glossary_LanguageCodePair{
				SourceLanguageCode: spec.SourceLang,
				TargetLanguageCode: spec.TargetLang,
			},
		},
		InputConfig: &translatepb.GlossaryInputConfig{
			Source: &translatepb.GlossaryInputConfig_GcsSource{
				GcsSource: &translatepb.GcsSource{InputUri: spec.InputURI},
			},
		},
	}
}

func fromProto(g *translatepb.Glossary) *glossary.Glossary {
	if g == nil {
		return nil
	}
	out := &glossary.Glossary{
		Name:       g.GetName(),
		EntryCount: int(g.GetEntryCount()),
		InputURI:   g.GetInputConfig().GetGcsSource().GetInputUri(),
	}
	if p := g.GetLanguagePair(); p != nil {
		out.SourceLang = p.GetSourceLanguageCode()
		out.TargetLang = p.GetTargetLanguageCode()
	}
	if ts := g.GetSubmitTime(); ts != nil {
		out.SubmitTime = ts.AsTime()
	}
	return out
}
