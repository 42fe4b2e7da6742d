package faults

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrContainerCorrupt    = errors.New("container corrupt")
	ErrEncodingUnavailable = errors.New("encoding unavailable")
	ErrDecodeFailed        = errors.New("decode failed")
	ErrPathTraversal       = errors.New("path traversal")
	ErrIO                  = errors.New("io failure")
	ErrSourceNotFound      = errors.New("source not found")
	ErrDestinationExists   = errors.New("destination exists")
)

// Kind values persisted alongside failed runs.
const (
	KindNone                = ""
	KindContainerCorrupt    = "container_corrupt"
	KindEncodingUnavailable = "encoding_unavailable"
	KindDecodeFailed        = "decode_failed"
	KindPathTraversal       = "path_traversal"
	KindIO                  = "io"
	KindSourceNotFound      = "source_not_found"
	KindDestinationExists   = "destination_exists"
	KindCanceled            = "canceled"
	KindUnknown             = "unknown"
)

var kinds = []struct {
	marker error
	kind   string
}{
	{ErrPathTraversal, KindPathTraversal},
	{ErrContainerCorrupt, KindContainerCorrupt},
	{ErrEncodingUnavailable, KindEncodingUnavailable},
	{ErrDecodeFailed, KindDecodeFailed},
	{ErrSourceNotFound, KindSourceNotFound},
	{ErrDestinationExists, KindDestinationExists},
	{ErrIO, KindIO},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above; nil falls back to ErrIO.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf maps an error to its stable kind string.
func KindOf(err error) string {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.kind
		}
	}
	if isCanceled(err) {
		return KindCanceled
	}
	return KindUnknown
}

// IsArchiveFatal reports whether err must abort the whole archive rather than
// a single entry or image.
func IsArchiveFatal(err error) bool {
	switch KindOf(err) {
	case KindNone, KindIO:
		return false
	default:
		return true
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
