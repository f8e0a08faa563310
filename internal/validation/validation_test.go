package validation

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestJSONName(t *testing.T) {
	type sample struct {
		Named   string `json:"user_name,omitempty"`
		Hidden  string `json:"-"`
		Bare    string
		Options string `json:",omitempty"`
	}
	typ := reflect.TypeOf(sample{})
	tests := []struct {
		field string
		want  string
	}{
		{"Named", "user_name"},
		{"Hidden", ""},
		{"Bare", ""},
		{"Options", ""},
	}
	for _, tt := range tests {
		f, _ := typ.FieldByName(tt.field)
		if got := JSONName(f); got != tt.want {
			t.Errorf("JSONName(%s) = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestNewReportsJSONNames(t *testing.T) {
	type sample struct {
		Subject string `json:"subject" validate:"required"`
		Secret  string `json:"-" validate:"required"`
	}
	err := New().Struct(sample{})
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
	if verrs[0].Field() != "subject" {
		t.Fatalf("expected json name, got %q", verrs[0].Field())
	}
	if verrs[1].Field() != "Secret" {
		t.Fatalf("hidden field should use the Go name, got %q", verrs[1].Field())
	}
}
