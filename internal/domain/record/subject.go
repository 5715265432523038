package record

import (
	"strings"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// MaxSubjectIDLength bounds subject identifiers coming from the UI layer.
const MaxSubjectIDLength = 128

// SubjectID is a value object identifying the owner of a clinical record
// (the patient whose record view is open).
type SubjectID struct {
	value string
}

// NewSubjectID creates a SubjectID from a string with validation.
func NewSubjectID(id string) (SubjectID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SubjectID{}, errors.Validation(errors.CodeInvalidInput, "subject id cannot be empty").Build()
	}
	if len(id) > MaxSubjectIDLength {
		return SubjectID{}, errors.Validation(errors.CodeInvalidInput, "subject id too long").
			WithDetails(id[:16] + "...").
			Build()
	}
	return SubjectID{value: id}, nil
}

// MustSubjectID is NewSubjectID for literals in tests and wiring code.
func MustSubjectID(id string) SubjectID {
	s, err := NewSubjectID(id)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the string representation of the SubjectID.
func (s SubjectID) String() string {
	return s.value
}

// IsEmpty checks if the SubjectID is the zero value.
func (s SubjectID) IsEmpty() bool {
	return s.value == ""
}
