package layout

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// idSeparators matches every run of characters that cannot appear in a
// block or layer identifier.
var idSeparators = regexp.MustCompile(`[^0-9A-Za-z._-]+`)

var chatAlignments = map[string]bool{
	"left":   true,
	"center": true,
	"right":  true,
}

// CoerceFloat converts an untrusted value into a finite float64. Unparseable
// input falls back, as does falsy input that would coerce to zero (nil,
// empty string, boolean false); an explicit numeric zero passes through.
func CoerceFloat(value any, fallback float64) float64 {
	switch v := value.(type) {
	case nil:
		return fallback
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fallback
		}
		return v
	case float32:
		return CoerceFloat(float64(v), fallback)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return fallback
	case json.Number:
		return CoerceFloat(v.String(), fallback)
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return fallback
		}
		number, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
			return fallback
		}
		return number
	default:
		return fallback
	}
}

// CoerceInt parses an untrusted value as a real number and truncates it.
// Unlike CoerceFloat there is no falsy-zero special case: boolean false and
// a literal zero both coerce to 0.
func CoerceInt(value any, fallback int) int {
	switch v := value.(type) {
	case nil:
		return fallback
	case bool:
		if v {
			return 1
		}
		return 0
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fallback
		}
		return truncateToInt(v)
	case float32:
		return CoerceInt(float64(v), fallback)
	case json.Number:
		return CoerceInt(v.String(), fallback)
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return fallback
		}
		number, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
			return fallback
		}
		return truncateToInt(number)
	default:
		return fallback
	}
}

// truncateToInt converts a finite float, saturating at the int range so
// huge magnitudes keep their sign instead of hitting undefined conversion.
func truncateToInt(number float64) int {
	if number >= float64(math.MaxInt) {
		return math.MaxInt
	}
	if number < float64(math.MinInt) {
		return math.MinInt
	}
	return int(number)
}

// ClampFloat coerces then clamps to the closed range [min, max].
func ClampFloat(value any, fallback, min, max float64) float64 {
	number := CoerceFloat(value, fallback)
	if number < min {
		return min
	}
	if number > max {
		return max
	}
	return number
}

// ClampInt coerces then clamps to the closed range [min, max].
func ClampInt(value any, fallback, min, max int) int {
	number := CoerceInt(value, fallback)
	if number < min {
		return min
	}
	if number > max {
		return max
	}
	return number
}

// NormalizeID turns an arbitrary value into a canonical identifier: runs of
// characters outside [0-9A-Za-z._-] collapse to a single dash, leading and
// trailing punctuation is trimmed, and the result is capped at 64 characters.
// An input that normalizes to nothing takes the fallback prefix verbatim.
func NormalizeID(value any, fallbackPrefix string) string {
	text := strings.TrimSpace(stringify(value))
	if text == "" {
		text = fallbackPrefix
	}
	normalized := idSeparators.ReplaceAllString(text, "-")
	normalized = strings.Trim(normalized, ".-_")
	if normalized == "" {
		normalized = fallbackPrefix
	}
	if len(normalized) > 64 {
		normalized = normalized[:64]
	}
	return normalized
}

// SanitizeAlignment lowercases and checks membership in the known chat
// alignments; anything else falls back.
func SanitizeAlignment(value any, fallback string) string {
	if s, ok := value.(string); ok {
		token := strings.ToLower(strings.TrimSpace(s))
		if chatAlignments[token] {
			return token
		}
	}
	return fallback
}

// stringify renders an untrusted value as text. nil becomes the empty
// string so callers can apply their own fallbacks.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truthy mirrors loose-payload truthiness: nil, false, zero, the empty
// string, and empty containers are false, everything else true.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}
