package record

import (
	"fmt"
	"strings"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// View identifies one of the mutually exclusive data-bearing tabs of the
// clinical record.
type View uint8

const (
	Evolution View = iota + 1
	Assessment
	Treatment
	History
	Assistant
)

var viewNames = [...]string{
	Evolution:  "evolution",
	Assessment: "assessment",
	Treatment:  "treatment",
	History:    "history",
	Assistant:  "assistant",
}

// AllViews returns every view in successor order.
func AllViews() []View {
	return []View{Evolution, Assessment, Treatment, History, Assistant}
}

// Valid reports whether v belongs to the closed set.
func (v View) Valid() bool {
	return v >= Evolution && v <= Assistant
}

func (v View) String() string {
	if !v.Valid() {
		return fmt.Sprintf("view(%d)", uint8(v))
	}
	return viewNames[v]
}

// Successor returns the view a clinician usually opens after v. It is a
// prefetch hint only. The last view has no successor.
func (v View) Successor() (View, bool) {
	if !v.Valid() || v == Assistant {
		return 0, false
	}
	return v + 1, true
}

// ParseView maps a stable name back to its View.
func ParseView(name string) (View, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for v := Evolution; v <= Assistant; v++ {
		if viewNames[v] == name {
			return v, nil
		}
	}
	return 0, errors.Validation(errors.CodeInvalidInput, "unknown view").
		WithDetails(name).
		Build()
}
