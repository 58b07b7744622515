package translate

import (
	"regexp"
	"strings"
)

// legacyWindowPattern matches the old regex-style window call,
// WINDOW('type', p1, p2, ...), so it can be rewritten into the native
// WINDOW(type(p1, p2, ...)) form before parsing. Grounded on the
// preprocessor rewrite the original engine performed for backward
// compatibility with queries written against an earlier grammar.
var legacyWindowPattern = regexp.MustCompile(`(?i)WINDOW\s*\(\s*'([a-zA-Z][a-zA-Z0-9_]*)'\s*(,[^)]*)?\)`)

// RewriteLegacyWindow rewrites every legacy WINDOW('type', params) call in
// sql into the native WINDOW(type(params)) form. Queries already written in
// the native form are left untouched: the pattern only matches a quoted
// type name as the first argument.
func RewriteLegacyWindow(sql string) string {
	return legacyWindowPattern.ReplaceAllStringFunc(sql, func(match string) string {
		sub := legacyWindowPattern.FindStringSubmatch(match)
		kind := sub[1]
		params := strings.TrimPrefix(sub[2], ",")
		params = strings.TrimSpace(params)
		if params == "" {
			return "WINDOW(" + kind + "())"
		}
		return "WINDOW(" + kind + "(" + params + "))"
	})
}
