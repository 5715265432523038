package record

import (
	"fmt"
	"strings"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// LoadStrategy selects how much data a view activation keeps active. It is
// always supplied by the caller, never inferred.
type LoadStrategy uint8

const (
	// Critical loads only the categories every view needs.
	Critical LoadStrategy = iota + 1
	// ViewScoped loads the categories statically assigned to the view.
	ViewScoped
	// Full loads every category.
	Full
)

func (s LoadStrategy) String() string {
	switch s {
	case Critical:
		return "critical"
	case ViewScoped:
		return "view"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// Valid reports whether s is a known strategy.
func (s LoadStrategy) Valid() bool {
	return s >= Critical && s <= Full
}

// ParseLoadStrategy accepts "critical", "view" (or "view-scoped", "tab")
// and "full".
func ParseLoadStrategy(name string) (LoadStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "critical":
		return Critical, nil
	case "view", "view-scoped", "tab", "tab-based":
		return ViewScoped, nil
	case "full":
		return Full, nil
	}
	return 0, errors.Validation(errors.CodeInvalidInput, "unknown load strategy").
		WithDetails(name).
		Build()
}
