// Package htmx reads HTMX request headers and sets the response headers
// the certy UI relies on: retargeting error alerts, swapping partials and
// triggering client events such as a task list refresh.
//
//	if htmx.IsHTMX(r) {
//	    cfg := htmx.NewConfig(htmx.WithTrigger("refresh-tasks"))
//	    cfg.ApplyHeaders(w)
//	}
package htmx
