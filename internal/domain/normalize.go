package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// unitSuffixes are the unit markers embedded in provider exports. They are
// removed in order after whitespace is stripped, so "29,94 in" becomes "29.94".
var unitSuffixes = []string{"°F", "mph", "in", "w/m²", "%"}

// ParseReading converts a raw export value into a Reading. It accepts strings
// (with comma decimals and unit suffixes), Go numeric types, json.Number, and
// nil. Anything that cannot be turned into a finite number yields an absent
// Reading; no parse error is ever returned.
func ParseReading(raw any) Reading {
	switch v := raw.(type) {
	case nil:
		return Absent()
	case Reading:
		return v
	case float64:
		return Present(v)
	case float32:
		return Present(float64(v))
	case int:
		return Present(float64(v))
	case int8:
		return Present(float64(v))
	case int16:
		return Present(float64(v))
	case int32:
		return Present(float64(v))
	case int64:
		return Present(float64(v))
	case uint:
		return Present(float64(v))
	case uint8:
		return Present(float64(v))
	case uint16:
		return Present(float64(v))
	case uint32:
		return Present(float64(v))
	case uint64:
		return Present(float64(v))
	case json.Number:
		return parseNumeric(v.String())
	case string:
		return parseNumeric(v)
	case fmt.Stringer:
		return parseNumeric(v.String())
	default:
		return Absent()
	}
}

func parseNumeric(s string) Reading {
	s = cleanNumeric(s)
	if s == "" {
		return Absent()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Absent()
	}
	return Present(f)
}

// cleanNumeric removes whitespace and unit markers and normalizes the decimal
// separator.
func cleanNumeric(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, ",", ".")
	for _, suffix := range unitSuffixes {
		s = strings.ReplaceAll(s, suffix, "")
	}
	return s
}

// truthy reports whether a decoded JSON value would count as "provided":
// not null, not an empty string, not numeric zero, not false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return ParseReading(t).Value != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
