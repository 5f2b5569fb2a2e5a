package processor

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the declared media type and byte length of item. Both checks
// always run so every reason is reported together.
func Validate(item SourceItem, limits Limits) ValidationResult {
	var errs []error
	var reasons []Reason

	if !typeAllowed(item.MediaType, limits.AllowedTypes) {
		reasons = append(reasons, ReasonUnsupportedType)
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnsupportedType, item.MediaType))
	}
	if item.ByteLength > limits.MaxInputBytes {
		reasons = append(reasons, ReasonTooLarge)
		errs = append(errs, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, item.ByteLength, limits.MaxInputBytes))
	}

	return ValidationResult{
		OK:      len(reasons) == 0,
		Reasons: reasons,
		Err:     errors.Join(errs...),
	}
}

func typeAllowed(declared string, allowed []string) bool {
	declared = normalizeMediaType(declared)
	if declared == "" {
		return false
	}
	for _, candidate := range allowed {
		if normalizeMediaType(candidate) == declared {
			return true
		}
	}
	return false
}

func normalizeMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(raw); err == nil {
		return parsed
	}
	return strings.ToLower(raw)
}

var argValidator = validator.New()

// CheckArgs reports structurally invalid limits or budgets.
func CheckArgs(limits Limits, budget Budget) error {
	if err := argValidator.Struct(limits); err != nil {
		return fmt.Errorf("%w: limits: %v", ErrInvalidArgument, err)
	}
	if err := argValidator.Struct(budget); err != nil {
		return fmt.Errorf("%w: budget: %v", ErrInvalidArgument, err)
	}
	return nil
}
