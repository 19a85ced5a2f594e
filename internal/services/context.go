package services

import "context"

// ctxKey indexes the correlation values logging.WithContext copies onto
// every record.
type ctxKey uint8

const (
	jobIDKey ctxKey = iota + 1
	stageKey
	workerKey
	requestIDKey
)

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func value(ctx context.Context, key ctxKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithJobID tags ctx with the job being processed. Empty ids are ignored.
func WithJobID(ctx context.Context, id string) context.Context { return withValue(ctx, jobIDKey, id) }

func JobIDFromContext(ctx context.Context) (string, bool) { return value(ctx, jobIDKey) }

// WithStage tags ctx with the pipeline step currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return value(ctx, stageKey) }

// WithWorker tags ctx with the worker slot, e.g. "worker-2".
func WithWorker(ctx context.Context, worker string) context.Context {
	return withValue(ctx, workerKey, worker)
}

func WorkerFromContext(ctx context.Context) (string, bool) { return value(ctx, workerKey) }

// WithRequestID tags ctx with the X-Request-ID of the HTTP call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return value(ctx, requestIDKey) }
