// Package sanitizer cleans user input before it is validated or stored.
//
// Helpers are plain func(string) string values so they compose:
//
//	clean := sanitizer.Compose(sanitizer.Trim, sanitizer.SingleLine)
//	name := clean(form.Name)
package sanitizer
