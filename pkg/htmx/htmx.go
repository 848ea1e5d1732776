package htmx

import "net/http"

// Request headers.
const (
	HeaderHXRequest = "HX-Request"
	HeaderHXTarget  = "HX-Target"
)

// Response headers.
const (
	HeaderHXRedirect = "HX-Redirect"
	HeaderHXRefresh  = "HX-Refresh"
	HeaderHXReswap   = "HX-Reswap"
	HeaderHXRetarget = "HX-Retarget"
	HeaderHXTrigger  = "HX-Trigger"
)

// SwapStrategy is an hx-swap value.
type SwapStrategy string

const (
	SwapInnerHTML  SwapStrategy = "innerHTML"
	SwapOuterHTML  SwapStrategy = "outerHTML"
	SwapAfterBegin SwapStrategy = "afterbegin"
	SwapNone       SwapStrategy = "none"
)

// IsHTMX reports whether r was sent by HTMX.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get(HeaderHXRequest) == "true"
}

// RedirectWithStatus redirects regular requests with status and HTMX
// requests through HX-Redirect, which HTMX only honours on a 200.
func RedirectWithStatus(w http.ResponseWriter, r *http.Request, targetURL string, status int) {
	if IsHTMX(r) {
		w.Header().Set(HeaderHXRedirect, targetURL)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, targetURL, status)
}
