// Package record defines the vocabulary of the clinical record view: the
// closed sets of entity categories, views and load strategies, and the
// cache keys built from them.
package record

import (
	"fmt"
	"strings"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// Category identifies a class of cacheable domain data. Categories are the
// unit of retention policy, loading and invalidation; they never denote a
// single record.
type Category uint8

// The zero Category is deliberately invalid.
const (
	Profile Category = iota + 1
	Goals
	Pathologies
	SoapRecords
	SoapDrafts
	TodayMeasurements
	Measurements
	RequiredMeasurements
	Surgeries
	MedicalReturns
	ExercisePlan
	Attachments

	categoryCount = iota
)

var categoryNames = [...]string{
	Profile:              "profile",
	Goals:                "goals",
	Pathologies:          "pathologies",
	SoapRecords:          "soap-records",
	SoapDrafts:           "soap-drafts",
	TodayMeasurements:    "today-measurements",
	Measurements:         "measurements",
	RequiredMeasurements: "required-measurements",
	Surgeries:            "surgeries",
	MedicalReturns:       "medical-returns",
	ExercisePlan:         "exercise-plan",
	Attachments:          "attachments",
}

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Profile; c <= Attachments; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	return c >= Profile && c <= Attachments
}

// String returns the stable wire name used in keys, logs and metrics.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// ParseCategory maps a stable name back to its Category.
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c := Profile; c <= Attachments; c++ {
		if categoryNames[c] == name {
			return c, nil
		}
	}
	return 0, errors.Validation(errors.CodeInvalidInput, "unknown category").
		WithDetails(name).
		Build()
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, errors.Validation(errors.CodeInvalidInput, "cannot marshal invalid category").Build()
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
