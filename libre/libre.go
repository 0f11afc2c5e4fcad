// Package libre implements a translator backed by a LibreTranslate server.
package libre

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/language"

	"github.com/minios-linux/proptrans/translate"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// defaultRetryAfter is used when a 429 response has no Retry-After header.
const defaultRetryAfter = 5 * time.Second

// Client calls the /translate endpoint of a LibreTranslate server.
// Glossaries are not supported by the API and are ignored.
type Client struct {
	BaseURL string
	APIKey  string
	http    *resty.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		http:    resty.New().SetTimeout(DefaultTimeout),
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Translate implements translate.Translator.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang, _ string) (string, error) {
	var (
		result translateResponse
		apiErr errorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(translateRequest{
			Q:      text,
			Source: apiLang(sourceLang),
			Target: apiLang(targetLang),
			Format: "text",
			APIKey: c.APIKey,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.BaseURL + "/translate")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %w", translate.ErrTranslatorUnavailable, err)
	}

	if resp.IsError() {
		detail := apiErr.Error
		if detail == "" {
			detail = strings.TrimSpace(resp.String())
		}
		cause := fmt.Errorf("libretranslate: %s: %s", resp.Status(), detail)
		switch resp.StatusCode() {
		case http.StatusTooManyRequests:
			return "", &translate.RateLimitError{
				RetryAfter: retryAfter(resp.Header().Get("Retry-After")),
				Err:        cause,
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return "", fmt.Errorf("%w: %w", translate.ErrTranslatorUnavailable, cause)
		}
		return "", cause
	}

	if result.TranslatedText == "" && strings.TrimSpace(text) != "" {
		return "", errors.New("libretranslate: empty translation")
	}
	return strings.TrimSpace(result.TranslatedText), nil
}

// apiLang returns lang in canonical BCP 47 form ("pt_br" becomes "pt-BR").
func apiLang(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
