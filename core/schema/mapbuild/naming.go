package mapbuild

import (
	"strings"
	"unicode"
)

// snakeCase lowercases a Go identifier and inserts underscores at
// case/digit boundaries, e.g. "UserID" -> "user_id".
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// pluralize is a deliberately small heuristic covering the common English
// suffixes seen in example schemas; it is not a full inflector. Callers
// that need exact control set Model.TableName explicitly (spec §4.1:
// "Start from each root model with an explicit table_name ... or a
// default derived from the snake_case pluralization").
func pluralize(word string) string {
	if word == "" {
		return word
	}
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "y") && !endsInVowelY(lower):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

func endsInVowelY(lower string) bool {
	if len(lower) < 2 {
		return false
	}
	v := lower[len(lower)-2]
	return v == 'a' || v == 'e' || v == 'i' || v == 'o' || v == 'u'
}

// defaultTableName derives a table name from a model name the way spec
// §4.1 describes: snake_case pluralization, with an optional configured
// prefix.
func defaultTableName(modelName, prefix string) string {
	base := pluralize(snakeCase(modelName))
	if prefix == "" {
		return base
	}
	return prefix + base
}

// columnName builds a deterministic column name per spec §3's
// Invariants: `{schema_prefix__}?{embed_prefix_}?{field_storage_name}`,
// joined with `_`, with the schema prefix applied only when multiModel
// is true.
func columnName(modelName string, embedPrefix []string, fieldStorageName string, multiModel bool) string {
	rest := append(append([]string{}, embedPrefix...), fieldStorageName)
	suffix := strings.Join(rest, "_")
	if !multiModel {
		return suffix
	}
	return snakeCase(modelName) + "__" + suffix
}
