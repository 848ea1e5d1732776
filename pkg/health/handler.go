package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// LivenessHandler always responds OK.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, &Response{Status: StatusHealthy})
			return
		}
		writeText(w, http.StatusOK, "OK")
	}
}

// ReadinessHandler runs checks on every request and answers 503 if any fails.
// The plain-text body lists the failing check names.
func ReadinessHandler(checks Checks, opts ...Option) http.HandlerFunc {
	run := newRunner(opts...)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := run.run(r.Context(), checks)

		status := http.StatusOK
		if !resp.Healthy() {
			status = http.StatusServiceUnavailable
		}

		if wantsJSON(r) {
			writeJSON(w, status, resp)
			return
		}
		if status == http.StatusOK {
			writeText(w, status, "OK")
			return
		}
		writeText(w, status, "Service Unavailable: "+strings.Join(failing(resp), ", "))
	}
}

func failing(resp *Response) []string {
	var names []string
	for name, c := range resp.Checks {
		if c.Status == StatusUnhealthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
