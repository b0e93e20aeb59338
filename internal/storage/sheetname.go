package storage

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxSheetNameLength is Excel's limit on sheet name length.
const MaxSheetNameLength = 31

var sheetNameReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_",
)

// SanitizeSheetName makes name acceptable to Excel: forbidden characters become
// underscores, surrounding apostrophes and spaces are trimmed, and the result is
// cut to MaxSheetNameLength runes. An empty result becomes "Sheet".
func SanitizeSheetName(name string) string {
	name = sheetNameReplacer.Replace(name)
	name = strings.Trim(name, "' ")
	name = truncateRunes(name, MaxSheetNameLength)
	name = strings.TrimRight(name, "' ")
	if name == "" {
		return "Sheet"
	}
	return name
}

// UniqueSheetName returns name, or name with a numeric suffix, such that its
// lower-cased form is not in taken. Excel compares sheet names case-insensitively.
func UniqueSheetName(name string, taken map[string]bool) string {
	if !taken[strings.ToLower(name)] {
		return name
	}
	for n := 2; ; n++ {
		suffix := "_" + strconv.Itoa(n)
		candidate := truncateRunes(name, MaxSheetNameLength-len(suffix)) + suffix
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
