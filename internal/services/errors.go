package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrItemFailure         = errors.New("item failure")
	ErrToolchainFailure    = errors.New("toolchain failure")
	ErrExternalTool        = errors.New("external tool error")
	ErrConfiguration       = errors.New("configuration error")
	ErrValidation          = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short label for the marker carried by err, or "error" when
// none of the known markers match.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrMetadataUnavailable):
		return "metadata_unavailable"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrItemFailure):
		return "item_failure"
	case errors.Is(err, ErrToolchainFailure):
		return "toolchain_failure"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "error"
	}
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
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
