package catalog

import (
	"fmt"
	"html"
	"path"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/starford/prefcenter/internal/models"
)

// Behavior is the per-value-type rule set used by the form model.
type Behavior struct {
	// Zero is the blank value an item holds when nothing was entered.
	Zero any
	// Coerce converts an incoming value to the stored representation.
	Coerce func(v any) any
}

var textPolicy = bluemonday.StrictPolicy()

var behaviors = map[models.ValueType]Behavior{
	models.ValueColor:   {Zero: "", Coerce: func(v any) any { return strings.TrimSpace(toString(v)) }},
	models.ValueText:    {Zero: "", Coerce: func(v any) any { return sanitizeText(toString(v)) }},
	models.ValueSelect:  {Zero: "", Coerce: func(v any) any { return toString(v) }},
	models.ValueFile:    {Zero: "", Coerce: func(v any) any { return fileName(toString(v)) }},
	models.ValueBoolean: {Zero: false, Coerce: func(v any) any { return toBool(v) }},
}

// BehaviorFor returns the rules for t. Unknown types behave like text.
func BehaviorFor(t models.ValueType) Behavior {
	if b, ok := behaviors[t]; ok {
		return b
	}
	return behaviors[models.ValueText]
}

// IsBlank reports whether v counts as "not filled in" for a required item:
// nil, empty string or false.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	default:
		return false
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b
		}
		return x != ""
	case float64:
		return x != 0
	default:
		return false
	}
}

// sanitizeText strips markup from user-entered text; entities that the
// policy escapes are decoded again so plain text round-trips unchanged.
func sanitizeText(s string) string {
	return html.UnescapeString(textPolicy.Sanitize(s))
}

// fileName keeps only the base name of an uploaded file.
func fileName(s string) string {
	s = strings.ReplaceAll(s, `\`, "/")
	if s == "" || strings.HasSuffix(s, "/") {
		return ""
	}
	return path.Base(s)
}
