package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchPayload struct {
	TaskID string `json:"task_id"`
	Rows   int    `json:"rows"`
}

func TestTypedExecutor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     json.RawMessage
		handErr error
		want    batchPayload
		wantErr error
	}{
		{name: "decodes payload", raw: json.RawMessage(`{"task_id":"t-1","rows":42}`), want: batchPayload{TaskID: "t-1", Rows: 42}},
		{name: "empty payload", raw: nil, want: batchPayload{}},
		{name: "invalid payload", raw: json.RawMessage(`{not json`), wantErr: ErrInvalidPayload},
		{name: "handler error", raw: nil, handErr: errBoom, wantErr: errBoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got batchPayload
			called := false
			exec := typedExecutor(func(_ context.Context, p batchPayload) error {
				called = true
				got = p
				return tt.handErr
			})

			err := exec.Execute(context.Background(), tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, !errors.Is(tt.wantErr, ErrInvalidPayload), called)
				return
			}
			require.NoError(t, err)
			assert.True(t, called)
			assert.Equal(t, tt.want, got)
		})
	}
}

var errBoom = errors.New("boom")

func TestTaskRegistry(t *testing.T) {
	t.Parallel()

	r := newTaskRegistry()
	assert.Empty(t, r.names())

	noop := executorFunc(func(context.Context, json.RawMessage) error { return nil })
	r.register("sweep_tasks", noop)
	r.register("run_batch", noop)

	_, ok := r.get("run_batch")
	assert.True(t, ok)
	_, ok = r.get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"run_batch", "sweep_tasks"}, r.names())
}
