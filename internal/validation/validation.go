// Package validation builds the struct validator used for every piece of
// user input, so field names in errors match the JSON the client sent.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(JSONName)
	return v
}

// JSONName is the field's JSON key. Fields hidden from JSON, or without a
// key, report "" and the validator falls back to the Go field name.
func JSONName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}
