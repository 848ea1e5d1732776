// Package health provides HTTP handlers for liveness and readiness probes.
//
// [LivenessHandler] always answers OK while the process runs.
// [ReadinessHandler] runs a set of named [Checks] in parallel, each bounded by
// a shared timeout, and answers 503 when any of them fails:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "work_dir":  health.DirWritable(cfg.WorkDir),
//	    "retention": store.Healthcheck(),
//	}))
//
// Both handlers answer plain text by default and JSON when the request asks
// for it via "Accept: application/json" or "?format=json".
package health
