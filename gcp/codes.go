package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/minios-linux/proptrans/glossary"
	"github.com/minios-linux/proptrans/translate"
)

// defaultRetryAfter is the pause after a RESOURCE_EXHAUSTED response.
const defaultRetryAfter = 10 * time.Second

// codeOf maps a gRPC error onto a glossary.Code.
func codeOf(err error) glossary.Code {
	if err == nil {
		return glossary.CodeUnknown
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return glossary.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return glossary.CodeCanceled
	}
	st, ok := status.FromError(err)
	if !ok {
		return glossary.CodeUnknown
	}
	switch st.Code() {
	case codes.NotFound:
		return glossary.CodeNotFound
	case codes.AlreadyExists:
		return glossary.CodeAlreadyExists
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return glossary.CodeInvalidArgument
	case codes.PermissionDenied, codes.Unauthenticated:
		return glossary.CodePermissionDenied
	case codes.ResourceExhausted:
		return glossary.CodeResourceExhausted
	case codes.DeadlineExceeded:
		return glossary.CodeDeadlineExceeded
	case codes.Unavailable:
		return glossary.CodeUnavailable
	case codes.Canceled:
		return glossary.CodeCanceled
	default:
		return glossary.CodeUnknown
	}
}

// apiError wraps a client error for the glossary lifecycle.
func apiError(op string, err error) error {
	if err == nil {
		return nil
	}
	return glossary.NewAPIError(op, codeOf(err), err)
}

// translateError wraps a TranslateText failure so the orchestrator can
// tell fatal, throttled and per-entry failures apart.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied, codes.Unavailable:
		return fmt.Errorf("%w: %w", translate.ErrTranslatorUnavailable, err)
	case codes.ResourceExhausted:
		return &translate.RateLimitError{RetryAfter: defaultRetryAfter, Err: err}
	}
	return err
}
