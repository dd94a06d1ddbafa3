package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks range and required-field constraints on the structural
// document. It fails fast on invalid or missing required fields and
// reports every offending field, ordered safety -> concurrency -> retry -> ...
func Validate(doc Document) error {
	if err := validate.Struct(doc); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(verrs)
		}
		return err
	}
	if doc.Safety.ConsecutiveAllFailLimit < 1 {
		return fmt.Errorf("safety.consecutive_all_fail_limit must be >= 1")
	}
	if doc.Retry.LLM.Multiplier <= 1 || doc.Retry.Database.Multiplier <= 1 ||
		doc.Retry.ExternalModule.Multiplier <= 1 || doc.Retry.Embedding.Multiplier <= 1 {
		return fmt.Errorf("retry.*.multiplier must be > 1")
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msg := "invalid configuration:"
	for _, fe := range verrs {
		msg += fmt.Sprintf("\n  %s: failed '%s' (value=%v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("%s", msg)
}
