package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var bytes32Pattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bytes32", func(fl validator.FieldLevel) bool {
		return bytes32Pattern.MatchString(fl.Field().String())
	})
	return v
}
