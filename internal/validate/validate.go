package validate

import (
	"github.com/park285/chess-duel/pkg/duelerr"
)

// StringField requires value to be a non-empty string and returns it.
// Numeric, nil, and empty inputs all fail with the same message; no
// partial leniency. Runs on every public entry point before any side
// effect.
func StringField(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok || s == "" {
		return "", duelerr.Validationf("invalid %s", name)
	}
	return s, nil
}

// StringType requires value to be string-typed but tolerates the empty
// string. The user search treats empty as "no results", not an error.
func StringType(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", duelerr.Validationf("invalid %s", name)
	}
	return s, nil
}

// BoolField requires value to be a bool. The invitation answer is the
// one strictly boolean field in the surface.
func BoolField(value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, duelerr.Domainf("answer is not type boolean")
	}
	return b, nil
}
