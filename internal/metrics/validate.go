package metrics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sadopc/greencampus/internal/validation"
)

var validate = validation.New()

// ValidationError reports a record that cannot enter a series. Index is the
// position within the series, or -1 for a standalone record.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("record %d: %s %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ValidateRecord checks a single record.
func ValidateRecord(r WeeklyRecord) error {
	if strings.TrimSpace(r.Period) == "" {
		return &ValidationError{Index: -1, Field: "period", Reason: "must not be empty"}
	}
	if !finite(r.Current) {
		return &ValidationError{Index: -1, Field: "current", Reason: "must be a finite number"}
	}
	if !finite(r.Previous) {
		return &ValidationError{Index: -1, Field: "previous", Reason: "must be a finite number"}
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Index: -1, Field: verrs[0].Field(), Reason: reason(verrs[0])}
		}
		return fmt.Errorf("validate record: %w", err)
	}
	return nil
}

// ValidateSeries checks every record and reports the first offending index.
func ValidateSeries(s Series) error {
	for i, r := range s {
		if err := ValidateRecord(r); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Index = i
				return verr
			}
			return err
		}
	}
	return nil
}

// ValidateSnapshot checks all three series.
func ValidateSnapshot(s Snapshot) error {
	for _, c := range categories {
		if err := ValidateSeries(s.Series(c)); err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
	}
	return nil
}

// ParseRecord coerces raw form input into a validated record.
func ParseRecord(period, current, previous string) (WeeklyRecord, error) {
	cur, err := parseAmount("current", current)
	if err != nil {
		return WeeklyRecord{}, err
	}
	prev, err := parseAmount("previous", previous)
	if err != nil {
		return WeeklyRecord{}, err
	}
	r := WeeklyRecord{Period: strings.TrimSpace(period), Current: cur, Previous: prev}
	if err := ValidateRecord(r); err != nil {
		return WeeklyRecord{}, err
	}
	return r, nil
}

func parseAmount(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &ValidationError{Index: -1, Field: field, Reason: "must be a number"}
	}
	return v, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "gte":
		return "must be >= " + fe.Param()
	}
	return "failed " + fe.Tag()
}
