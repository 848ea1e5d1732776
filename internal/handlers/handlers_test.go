package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/certificate"
	"github.com/dmitrymomot/certy/internal/handlers"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/internal/views"
	"github.com/dmitrymomot/certy/middlewares"
	"github.com/dmitrymomot/certy/pkg/mailer"
)

type testApp struct {
	srv     *server.Server
	svc     *batch.Service
	sender  *mailer.NopSender
	layouts *layout.Store
	uploads string

	mu    sync.Mutex
	creds []handlers.Credentials
	// formSender receives mail for batches started with form credentials.
	formSender *mailer.NopSender
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	dir := t.TempDir()
	app := &testApp{
		sender:     &mailer.NopSender{},
		formSender: &mailer.NopSender{},
		uploads:    filepath.Join(dir, "uploads"),
		layouts:    layout.NewStore(filepath.Join(dir, "layout.json")),
	}
	_, err := app.layouts.Load()
	require.NoError(t, err)

	renderer := certificate.NewRenderer(
		certificate.WithOutputDir(filepath.Join(dir, "out")),
		certificate.WithFontDir(filepath.Join(dir, "fonts")),
	)
	orch := batch.NewOrchestrator(batch.NewRegistry(), renderer,
		batch.WithMailer(mailer.New(app.sender, nil, mailer.Config{From: "certs@example.com"})),
	)
	app.svc, err = batch.NewService(orch, batch.WithUploadDir(app.uploads))
	require.NoError(t, err)
	require.NoError(t, app.svc.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.svc.Stop(ctx)
	})

	factory := func(c handlers.Credentials) (*mailer.Mailer, error) {
		app.mu.Lock()
		app.creds = append(app.creds, c)
		app.mu.Unlock()
		return mailer.New(app.formSender, nil, mailer.Config{From: c.Email}), nil
	}

	app.srv = server.New(
		server.WithMiddleware(middlewares.RequestID(), middlewares.Recover()),
		server.WithErrorHandler(middlewares.ErrorHandler()),
		server.WithHandlers(
			handlers.NewPageHandler(app.svc, app.layouts),
			handlers.NewUploadHandler(app.svc, app.uploads, 0, views.MailDefaults{Host: "smtp.example.com", Port: 587}),
			handlers.NewBatchHandler(app.svc, app.layouts, factory),
			handlers.NewLayoutHandler(app.layouts, renderer),
		),
	)
	return app
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.srv.Handler().ServeHTTP(rec, req)
	return rec
}

type upload struct {
	field, name string
	content     []byte
}

func multipartRequest(t *testing.T, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload-files", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func rosterCSV(n int, extra ...string) []byte {
	var b strings.Builder
	b.WriteString("Student_Name,Email_ID,Year,Branch\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Student %d,student%d@example.com,%d,CS\n", i, i, i%4+1)
	}
	for _, line := range extra {
		b.WriteString(line + "\n")
	}
	return []byte(b.String())
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 30))))
	return buf.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testApp) uploadRoster(t *testing.T, n int) string {
	t.Helper()
	rec := a.do(t, multipartRequest(t, upload{"excel_file", "students.csv", rosterCSV(n)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[handlers.UploadResponse](t, rec).TaskID
}

func (a *testApp) waitTerminal(t *testing.T, id string) batch.Progress {
	t.Helper()
	var p batch.Progress
	require.Eventually(t, func() bool {
		rec := a.do(t, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		p = decode[batch.Progress](t, rec)
		return p.State.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)
	return p
}

func uploadDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `name="excel_file"`)
}

func TestUpload(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	rec := app.do(t, multipartRequest(t, upload{"excel_file", "Students.CSV", rosterCSV(3, "No Email,,2,EE", ",ghost@example.com,1,ME")}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[handlers.UploadResponse](t, rec)
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 3, resp.Valid)
	assert.Len(t, resp.Skipped, 2)
	assert.Equal(t, "student_name", resp.Columns["name"])

	p, err := app.svc.Status(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatePending, p.State)
	assert.FileExists(t, p.InputFile)
	assert.Equal(t, ".csv", filepath.Ext(p.InputFile))
}

func TestUploadHTMX(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	req := multipartRequest(t, upload{"excel_file", "students.csv", rosterCSV(2)})
	req.Header.Set("HX-Request", "true")
	rec := app.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hx-post="/process-certificates"`)
	assert.Contains(t, rec.Body.String(), `placeholder="smtp.example.com"`)
}

func TestUploadWithTemplate(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	rec := app.do(t, multipartRequest(t,
		upload{"excel_file", "students.csv", rosterCSV(1)},
		upload{"template_file", "background.png", pngBytes(t)},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[handlers.UploadResponse](t, rec)
	assert.Equal(t, "background.png", resp.Template)

	p, err := app.svc.Status(resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "template.png", filepath.Base(p.TemplateFile))
}

func TestUploadRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		files  []upload
		code   string
		status int
	}{
		{
			name:   "missing roster",
			files:  []upload{{"other", "x.csv", rosterCSV(1)}},
			status: http.StatusUnprocessableEntity, code: middlewares.CodeValidation,
		},
		{
			name:   "wrong roster extension",
			files:  []upload{{"excel_file", "students.txt", rosterCSV(1)}},
			status: http.StatusUnprocessableEntity, code: middlewares.CodeInvalidFile,
		},
		{
			name:   "empty roster",
			files:  []upload{{"excel_file", "students.csv", nil}},
			status: http.StatusUnprocessableEntity, code: middlewares.CodeInvalidFile,
		},
		{
			name:   "no email column",
			files:  []upload{{"excel_file", "students.csv", []byte("Name,Branch\nAlice,CS\n")}},
			status: http.StatusUnprocessableEntity, code: middlewares.CodeInvalidRoster,
		},
		{
			name: "wrong template extension",
			files: []upload{
				{"excel_file", "students.csv", rosterCSV(1)},
				{"template_file", "tpl.docx", []byte("doc")},
			},
			status: http.StatusUnprocessableEntity, code: middlewares.CodeInvalidFile,
		},
		{
			name: "corrupt template",
			files: []upload{
				{"excel_file", "students.csv", rosterCSV(1)},
				{"template_file", "tpl.pdf", []byte("just some text")},
			},
			status: http.StatusUnprocessableEntity, code: middlewares.CodeInvalidTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			app := newTestApp(t)

			rec := app.do(t, multipartRequest(t, tt.files...))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[middlewares.ErrorResponse](t, rec).Code)
			assert.Empty(t, uploadDirs(t, app.uploads))
			assert.Empty(t, app.svc.List())
		})
	}
}

func TestProcessCertificates(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	id := app.uploadRoster(t, 3)

	rec := app.do(t, formRequest(http.MethodPost, "/process-certificates", url.Values{
		"task_id":       {id},
		"email_subject": {"Certificate for {name}"},
	}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, id, decode[handlers.TaskResponse](t, rec).TaskID)

	p := app.waitTerminal(t, id)
	assert.Equal(t, batch.StateCompleted, p.State)
	assert.Equal(t, 3, p.Succeeded)

	sent := app.sender.Sent()
	require.Len(t, sent, 3)
	subjects := []string{sent[0].Subject, sent[1].Subject, sent[2].Subject}
	assert.ElementsMatch(t, []string{"Certificate for Student 1", "Certificate for Student 2", "Certificate for Student 3"}, subjects)
	assert.Empty(t, app.formSender.Sent())

	rec = app.do(t, formRequest(http.MethodPost, "/process-certificates", url.Values{"task_id": {id}}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProcessWithFormCredentials(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	id := app.uploadRoster(t, 2)

	rec := app.do(t, formRequest(http.MethodPost, "/process-certificates", url.Values{
		"task_id":         {id},
		"sender_email":    {"registrar@example.com"},
		"sender_password": {"app-password"},
		"smtp_server":     {"smtp.example.org"},
		"smtp_port":       {"465"},
		"workers":         {"2"},
	}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	p := app.waitTerminal(t, id)
	assert.Equal(t, batch.StateCompleted, p.State)
	assert.Len(t, app.formSender.Sent(), 2)
	assert.Empty(t, app.sender.Sent())

	app.mu.Lock()
	defer app.mu.Unlock()
	require.Len(t, app.creds, 1)
	assert.Equal(t, handlers.Credentials{Email: "registrar@example.com", Password: "app-password", Host: "smtp.example.org", Port: 465}, app.creds[0])
}

func TestProcessRejected(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	id := app.uploadRoster(t, 1)

	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{"missing task id", url.Values{}, http.StatusUnprocessableEntity},
		{"unknown task", url.Values{"task_id": {"nope"}}, http.StatusNotFound},
		{"bad sender email", url.Values{"task_id": {id}, "sender_email": {"not-an-email"}}, http.StatusUnprocessableEntity},
		{"bad port", url.Values{"task_id": {id}, "smtp_port": {"70000"}}, http.StatusUnprocessableEntity},
		{"too many workers", url.Values{"task_id": {id}, "workers": {"500"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, formRequest(http.MethodPost, "/process-certificates", tt.form))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	p, err := app.svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, batch.StatePending, p.State)
}

func TestStatusAndTasks(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	id := app.uploadRoster(t, 1)

	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, batch.StatePending, decode[batch.Progress](t, rec).State)

	req := httptest.NewRequest(http.MethodGet, "/status/"+id, nil)
	req.Header.Set("HX-Request", "true")
	rec = app.do(t, req)
	assert.Contains(t, rec.Body.String(), `hx-get="/status/`+id+`"`)

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/status/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]batch.Progress](t, rec)
	require.Len(t, list["tasks"], 1)
	assert.Equal(t, id, list["tasks"][0].TaskID)
}

func TestCancel(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	id := app.uploadRoster(t, 1)

	rec := app.do(t, httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/cancel", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, batch.StateCancelled, decode[handlers.TaskResponse](t, rec).Status)

	rec = app.do(t, httptest.NewRequest(http.MethodPost, "/tasks/"+id+"/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, formRequest(http.MethodPost, "/process-certificates", url.Values{"task_id": {id}}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCleanup(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	id := app.uploadRoster(t, 1)
	require.Len(t, uploadDirs(t, app.uploads), 1)

	rec := app.do(t, httptest.NewRequest(http.MethodDelete, "/cleanup/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, uploadDirs(t, app.uploads))

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = app.do(t, httptest.NewRequest(http.MethodDelete, "/cleanup/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLayout(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/layout", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[layout.Config](t, rec)
	assert.Equal(t, layout.Default(), cfg)

	name := cfg.Fields[layout.FieldName]
	name.Size = 30
	name.Color = "#1A2B3C"
	cfg.Fields[layout.FieldName] = name
	body, err := json.Marshal(cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/layout", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = app.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, cfg, app.layouts.Current())

	reloaded, err := layout.NewStore(app.layouts.Path()).Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestLayoutRejected(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	bad := layout.Default()
	title := *bad.Title
	title.Color = "red"
	bad.Title = &title
	body, err := json.Marshal(bad)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/layout", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := app.do(t, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[middlewares.ErrorResponse](t, rec)
	assert.Equal(t, middlewares.CodeValidation, resp.Code)
	assert.Contains(t, resp.Details, "title.color")

	req = httptest.NewRequest(http.MethodPut, "/layout", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec = app.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, layout.Default(), app.layouts.Current())
}

func TestLayoutFormHTMX(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	cfg := layout.Default()
	cfg.TemplatePath = "other.pdf"
	req := formRequest(http.MethodPut, "/layout", url.Values{"layout": {views.LayoutJSON(cfg)}})
	req.Header.Set("HX-Request", "true")
	rec := app.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Layout saved.")
	assert.Equal(t, "other.pdf", app.layouts.Current().TemplatePath)
}

func TestLayoutPreview(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/layout/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}
