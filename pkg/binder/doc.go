// Package binder decodes request input into tagged structs.
//
// Form and Query read url-encoded values using `form:"name"` and
// `query:"name"` tags; JSON decodes a size-limited body in strict mode.
// Supported field kinds are string, bool, int and []string. A field tagged
// "-" is skipped, an untagged field binds to its lowercased name.
//
//	var req struct {
//		Email string `form:"email"`
//		From  string `form:"from"`
//	}
//	if err := binder.Form()(r, &req); err != nil {
//		// errors.Is(err, binder.ErrFailedToParseForm)
//	}
package binder
