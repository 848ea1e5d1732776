package views_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/views"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(t.Context(), &buf))
	return buf.String()
}

func TestIndex(t *testing.T) {
	t.Parallel()

	html := render(t, views.Index(views.IndexData{
		Layout: views.LayoutJSON(layout.Default()),
		Tasks: []batch.Progress{{
			TaskID:    "task-1",
			State:     batch.StateCompleted,
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Total:     3, Valid: 3, Completed: 3, Succeeded: 3,
		}},
	}))

	assert.Contains(t, html, `hx-post="/upload-files"`)
	assert.Contains(t, html, `name="excel_file"`)
	assert.Contains(t, html, "task-1")
	assert.Contains(t, html, "2024-05-01 10:00:00")
	assert.Contains(t, html, "CERTIFICATE OF COMPLETION")
	assert.Contains(t, html, `hx-delete="/cleanup/task-1"`)
}

func TestProgress(t *testing.T) {
	t.Parallel()

	t.Run("running task polls", func(t *testing.T) {
		t.Parallel()
		html := render(t, views.Progress(batch.Progress{
			TaskID: "abc", State: batch.StateRunning, Total: 4, Completed: 1, Succeeded: 1,
			StartedAt: time.Now(),
		}))
		assert.Contains(t, html, `hx-get="/status/abc"`)
		assert.Contains(t, html, `value="25"`)
		assert.Contains(t, html, `hx-post="/tasks/abc/cancel"`)
	})

	t.Run("terminal task stops polling and lists failures", func(t *testing.T) {
		t.Parallel()
		html := render(t, views.Progress(batch.Progress{
			TaskID: "abc", State: batch.StatePartiallyFailed, Total: 2, Completed: 2, Succeeded: 1, Failed: 1,
			Records: []batch.RecordStatus{
				{Row: 2, Email: "a@example.com", Outcome: batch.OutcomeSucceeded},
				{Row: 3, Email: "b@example.com", Outcome: batch.OutcomeFailed, Stage: batch.StageSend, Reason: "550 mailbox <unavailable>"},
			},
		}))
		assert.NotContains(t, html, "hx-trigger")
		assert.Contains(t, html, "Row 3 b@example.com (send)")
		assert.Contains(t, html, "550 mailbox &lt;unavailable&gt;")
		assert.NotContains(t, html, "a@example.com")
	})
}

func TestUploaded(t *testing.T) {
	t.Parallel()

	html := render(t, views.Uploaded(views.UploadData{
		TaskID: "t-1", Total: 5, Valid: 4,
		Skipped: []batch.RecordStatus{{Row: 4, Reason: "invalid email"}},
	}))
	assert.Contains(t, html, `value="t-1"`)
	assert.Contains(t, html, "<strong>4</strong> of 5")
	assert.Contains(t, html, "Row 4: invalid email")
	assert.Contains(t, html, "blank page")
}

func TestTasksEmpty(t *testing.T) {
	t.Parallel()
	assert.Contains(t, render(t, views.Tasks(nil)), "No tasks.")
}

func TestAlertEscapes(t *testing.T) {
	t.Parallel()
	html := render(t, views.ErrorAlert("<script>x</script>"))
	assert.Contains(t, html, `class="alert error"`)
	assert.NotContains(t, html, "<script>")
}

func TestStaticStylesheet(t *testing.T) {
	t.Parallel()
	data, err := views.Static.ReadFile("static/app.css")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
