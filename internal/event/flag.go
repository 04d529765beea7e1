package event

import (
	"strconv"
	"strings"
)

// Flag labels used as dimension values.
const (
	FlaggedLabel   = "con_coctel"
	UnflaggedLabel = "sin_coctel"
)

// DefaultFlag is the value assigned when a stored flag is missing or malformed.
// A row without a valid flag counts as flagged.
const DefaultFlag = true

// CoerceFlag converts a raw stored flag into a boolean. It is the only place
// where malformed flags are interpreted: nil, empty and unparsable values
// return DefaultFlag.
func CoerceFlag(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return DefaultFlag
	case bool:
		return v
	case int:
		return coerceNumber(float64(v))
	case int64:
		return coerceNumber(float64(v))
	case float64:
		return coerceNumber(v)
	case []byte:
		return coerceString(string(v))
	case string:
		return coerceString(v)
	case *string:
		if v == nil {
			return DefaultFlag
		}
		return coerceString(*v)
	default:
		return DefaultFlag
	}
}

func coerceNumber(n float64) bool {
	switch n {
	case 0:
		return false
	case 1:
		return true
	default:
		return DefaultFlag
	}
}

func coerceString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "si", "sí", "con":
		return true
	case "false", "f", "no", "n", "sin":
		return false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return DefaultFlag
	}
	return coerceNumber(n)
}

// FlagLabel returns the dimension value for a flag.
func FlagLabel(flagged bool) string {
	if flagged {
		return FlaggedLabel
	}
	return UnflaggedLabel
}
