package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs struct-tag validation and returns a user-facing message
// naming the first failed field, or "" when the value is valid.
func ValidateStruct(v any) string {
	err := validate.Struct(v)
	if err == nil {
		return ""
	}

	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return "invalid field: " + strings.ToLower(fe.Field())
	}
	return "invalid request"
}
