package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks struct tags plus the cross-field rules that tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid configuration: %s", formatValidationErrors(errs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Mount.InlineThreshold >= c.Mount.BlockSize {
		return fmt.Errorf("invalid configuration: inline_threshold (%d) must be smaller than block_size (%d)",
			c.Mount.InlineThreshold, c.Mount.BlockSize)
	}
	return nil
}

// formatValidationErrors renders validator errors as one readable line per
// failing field.
func formatValidationErrors(errs validator.ValidationErrors) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s fails %q", e.Namespace(), e.Tag())
	}
	return msg
}
