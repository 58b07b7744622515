package eventflux

import "github.com/eventflux-io/engine/internal/sql/translate"

// RewriteLegacyWindow rewrites every legacy WINDOW('type', params) call in
// sql into the native WINDOW(type(params)) form, so callers can preprocess
// a query string before handing it to a parser. translate.RewriteLegacyWindow
// itself lives under internal/sql/translate, which an embedding host cannot
// import directly; this re-export is the only reachable entry point for it.
func RewriteLegacyWindow(sql string) string {
	return translate.RewriteLegacyWindow(sql)
}
