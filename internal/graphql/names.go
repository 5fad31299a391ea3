package graphql

import (
	"strings"
	"unicode"
)

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// pluralize applies naive English pluralization, matching the collection
// naming convention existing data was written under.
func pluralize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "s"),
		strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "ch"),
		strings.HasSuffix(lower, "sh"):
		return s + "es"
	case len(s) > 1 && strings.HasSuffix(lower, "y") && !isVowel(rune(lower[len(lower)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

func isVowel(r rune) bool {
	return strings.ContainsRune("aeiou", r)
}

// collectionName maps a table name to its backing collection.
func collectionName(table string) string {
	return pluralize(strings.ToLower(table))
}

// scopeName builds the scope string guarding one operation on a table.
func scopeName(table, action string) string {
	return strings.ToLower(table) + ":" + action
}

// topicName builds the pub/sub topic for an entity event, e.g. Order_CREATED.
func topicName(table, event string) string {
	return capitalize(table) + "_" + event
}
