// Package job runs background tasks on in-process worker pools.
//
// Tasks are structs with Name() and Handle(ctx, payload) methods; no interface
// import is needed. Payloads are marshaled to JSON on Enqueue and decoded into
// the task's payload type on execution, so a job never shares memory with the
// code that enqueued it.
//
//	type RunBatch struct{ svc *batch.Service }
//
//	func (t *RunBatch) Name() string { return "run_batch" }
//
//	func (t *RunBatch) Handle(ctx context.Context, p RunBatchPayload) error {
//	    return t.svc.Execute(ctx, p.TaskID)
//	}
//
//	m, err := job.NewManager(
//	    job.WithTask[RunBatchPayload](&RunBatch{svc: svc}),
//	    job.WithScheduledTask(&SweepExpired{svc: svc}),
//	    job.WithQueue("batches", 2),
//	    job.WithLogger(logger),
//	)
//
// # Queues
//
// Every manager has a default queue (WithMaxWorkers workers). Named queues
// created with WithQueue bound the concurrency of the jobs sent to them with
// InQueue.
//
// # Scheduled tasks
//
// WithScheduledTask registers a task fired by robfig/cron. Schedules accept
// 5-field cron expressions and descriptors such as "@hourly" or "@every 15m".
// A run is skipped while the previous run of the same task is still going.
//
// # Lifecycle
//
// Jobs may be enqueued before Start. Stop waits for running jobs until its
// context expires, then cancels them. Jobs are held in memory and do not
// survive a restart.
package job
