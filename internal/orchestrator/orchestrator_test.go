package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/local/pdfdocx/internal/extract"
	"github.com/local/pdfdocx/internal/pdftest"
	"github.com/local/pdfdocx/internal/progress"
	"github.com/local/pdfdocx/internal/storage"
)

type extractFunc func(ctx context.Context, in extract.Input, opts extract.Options, report progress.Func) (*extract.Result, error)

func (f extractFunc) Extract(ctx context.Context, in extract.Input, opts extract.Options, report progress.Func) (*extract.Result, error) {
	return f(ctx, in, opts, report)
}

func okExtractor(ctx context.Context, in extract.Input, opts extract.Options, report progress.Func) (*extract.Result, error) {
	report(progress.Update{Progress: 50, Step: "page"})
	return &extract.Result{
		Document: []byte("PK fake docx for " + in.Name),
		Run: extract.Run{SourceName: in.Name, PageCount: 1, Pages: []extract.PageResult{
			{PageNumber: 1, Text: "hello", UsedOCRFallback: true, OCRScore: 42, OCRPasses: 2},
		}, OCRPages: []int{1}},
	}, nil
}

func newTestServer(t *testing.T, ex Extractor) (*Orchestrator, *httptest.Server) {
	t.Helper()
	results, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	status := progress.NewMemoryStore(time.Hour)
	o := New(Dependencies{
		Pipeline:    ex,
		Status:      status,
		Results:     results,
		Defaults:    extract.Options{Profile: extract.ProfileQuality, Languages: []string{"eng"}},
		Concurrency: 1,
		TempDir:     t.TempDir(),
	})
	srv := httptest.NewServer(o.Routes())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.Shutdown(ctx)
		_ = status.Close()
	})
	return o, srv
}

func upload(t *testing.T, url, name string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	resp, err := http.Post(url+"/v1/extract", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func errorCode(t *testing.T, resp *http.Response) string {
	m := decode(t, resp)
	e, _ := m["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func waitState(t *testing.T, url, id, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url + "/v1/jobs/" + id)
		if err != nil {
			t.Fatal(err)
		}
		m := decode(t, resp)
		if m["status"] == want {
			return m
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck in %v, want %s", id, m["status"], want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUploadRunsJobAndServesResult(t *testing.T) {
	_, srv := newTestServer(t, extractFunc(okExtractor))

	resp := upload(t, srv.URL, "scan.pdf", pdftest.TextPDF("hello"), map[string]string{"processing_profile": "fast", "languages": "eng+deu"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	id, _ := decode(t, resp)["job_id"].(string)
	if id == "" {
		t.Fatal("missing job_id")
	}

	st := waitState(t, srv.URL, id, progress.StateSuccess)
	md, _ := st["metadata"].(map[string]any)
	if md["profile"] != "fast" || md["source_name"] != "scan.pdf" {
		t.Fatalf("metadata = %v", md)
	}

	res, err := http.Get(srv.URL + "/v1/jobs/" + id + "/result")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body := new(bytes.Buffer)
	_, _ = body.ReadFrom(res.Body)
	if res.StatusCode != http.StatusOK || body.String() != "PK fake docx for scan.pdf" {
		t.Fatalf("result = %d %q", res.StatusCode, body.String())
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "scan.docx") {
		t.Fatalf("content disposition = %q", cd)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/jobs/"+id, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d", del.StatusCode)
	}
	gone, _ := http.Get(srv.URL + "/v1/jobs/" + id)
	gone.Body.Close()
	if gone.StatusCode != http.StatusNotFound {
		t.Fatalf("after delete = %d", gone.StatusCode)
	}
}

func TestAcceptedResponseCarriesPageCount(t *testing.T) {
	_, srv := newTestServer(t, extractFunc(okExtractor))
	doc := pdftest.TextPDF("first page", "second page")

	// Each job may finish while its own handler is still answering.
	var ids []string
	for i := 0; i < 8; i++ {
		resp := upload(t, srv.URL, "two.pdf", doc, nil)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		m := decode(t, resp)
		if m["total_pages"] != float64(2) {
			t.Fatalf("total_pages = %v, want 2", m["total_pages"])
		}
		id, _ := m["job_id"].(string)
		ids = append(ids, id)
	}
	for _, id := range ids {
		st := waitState(t, srv.URL, id, progress.StateSuccess)
		md, _ := st["metadata"].(map[string]any)
		if md["result_key"] == nil || md["total_pages"] != float64(2) {
			t.Fatalf("metadata = %v", md)
		}
	}
}

func TestRejectsInvalidInput(t *testing.T) {
	_, srv := newTestServer(t, extractFunc(okExtractor))

	var img bytes.Buffer
	_ = png.Encode(&img, image.NewGray(image.Rect(0, 0, 2, 2)))

	cases := map[string]*http.Response{
		"missing file":  upload(t, srv.URL, "", nil, nil),
		"image":         upload(t, srv.URL, "a.png", img.Bytes(), nil),
		"bad profile":   upload(t, srv.URL, "a.pdf", pdftest.TextPDF("x"), map[string]string{"processing_profile": "turbo"}),
		"bad language":  upload(t, srv.URL, "a.pdf", pdftest.TextPDF("x"), map[string]string{"languages": "xx"}),
		"bad min chars": upload(t, srv.URL, "a.pdf", pdftest.TextPDF("x"), map[string]string{"min_native_chars_per_page": "lots"}),
	}
	for name, resp := range cases {
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "INPUT_INVALID" {
			t.Errorf("%s: code = %q", name, code)
		}
	}
}

func TestWaitModeMapsErrors(t *testing.T) {
	for _, tc := range []struct {
		code extract.Code
		want int
	}{
		{extract.CodePDFParseFailed, http.StatusUnprocessableEntity},
		{extract.CodeOCRRuntimeMissing, http.StatusServiceUnavailable},
		{extract.CodeOCRFailed, http.StatusInternalServerError},
	} {
		t.Run(string(tc.code), func(t *testing.T) {
			fail := func(context.Context, extract.Input, extract.Options, progress.Func) (*extract.Result, error) {
				return nil, &extract.Error{Code: tc.code, Message: "nope"}
			}
			_, srv := newTestServer(t, extractFunc(fail))
			resp := upload(t, srv.URL, "a.pdf", pdftest.TextPDF("x"), map[string]string{"wait": "true"})
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			if code := errorCode(t, resp); code != string(tc.code) {
				t.Fatalf("code = %q", code)
			}
		})
	}
}

func TestWaitModeReturnsDocument(t *testing.T) {
	_, srv := newTestServer(t, extractFunc(okExtractor))
	resp := upload(t, srv.URL, "a.pdf", pdftest.TextPDF("x"), map[string]string{"wait": "1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != docxMIME {
		t.Fatalf("status = %d, type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	block := func(ctx context.Context, _ extract.Input, _ extract.Options, _ progress.Func) (*extract.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, srv := newTestServer(t, extractFunc(block))

	resp := upload(t, srv.URL, "a.pdf", pdftest.TextPDF("x"), nil)
	id, _ := decode(t, resp)["job_id"].(string)
	<-started

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/jobs/"+id, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusAccepted {
		t.Fatalf("cancel = %d", del.StatusCode)
	}
	st := waitState(t, srv.URL, id, progress.StateCancelled)
	if st["code"] != CodeCancelled {
		t.Fatalf("code = %v", st["code"])
	}

	res, _ := http.Get(srv.URL + "/v1/jobs/" + id + "/result")
	res.Body.Close()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("result of cancelled job = %d", res.StatusCode)
	}
}

func TestFailedJobRecordsCodeAndPage(t *testing.T) {
	fail := func(context.Context, extract.Input, extract.Options, progress.Func) (*extract.Result, error) {
		return nil, &extract.Error{Code: extract.CodeOCRFailed, Message: "ocr failed", Page: 3}
	}
	_, srv := newTestServer(t, extractFunc(fail))
	resp := upload(t, srv.URL, "a.pdf", pdftest.TextPDF("x"), nil)
	id, _ := decode(t, resp)["job_id"].(string)

	st := waitState(t, srv.URL, id, progress.StateFailed)
	md, _ := st["metadata"].(map[string]any)
	if st["code"] != "OCR_FAILED" || md["failed_page"] != float64(3) {
		t.Fatalf("status = %v", st)
	}
}

func TestFileURLSource(t *testing.T) {
	pdf := pdftest.TextPDF("remote")
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="remote.pdf"`)
		_, _ = w.Write(pdf)
	}))
	defer origin.Close()

	var got extract.Input
	capture := func(ctx context.Context, in extract.Input, opts extract.Options, report progress.Func) (*extract.Result, error) {
		got = in
		return okExtractor(ctx, in, opts, report)
	}
	_, srv := newTestServer(t, extractFunc(capture))

	body, _ := json.Marshal(map[string]any{"file_url": origin.URL + "/files/x", "wait": true})
	resp, err := http.Post(srv.URL+"/v1/extract", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got.Name != "remote.pdf" || !bytes.Equal(got.Data, pdf) {
		t.Fatalf("input = %q (%d bytes)", got.Name, len(got.Data))
	}

	body, _ = json.Marshal(map[string]any{"file_url": "s3://bucket/key.pdf"})
	resp, _ = http.Post(srv.URL+"/v1/extract", "application/json", bytes.NewReader(body))
	if code := errorCode(t, resp); code != "INPUT_INVALID" {
		t.Fatalf("s3 without storage: code = %q", code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		"INPUT_INVALID":          400,
		"PDF_PARSE_FAILED":       422,
		"OCR_RUNTIME_MISSING":    503,
		"OCR_FAILED":             500,
		"DOCX_GENERATION_FAILED": 500,
		CodeTimeout:              504,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestHTTPName(t *testing.T) {
	if got := httpName("https://x/a/report.pdf?sig=1", ""); got != "report.pdf" {
		t.Fatalf("got %q", got)
	}
	if got := httpName("https://x/a/report.pdf", `attachment; filename="real.pdf"`); got != "real.pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanupTemps(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)
	for _, name := range []string{"pdfdocx-123", "pdfsrc-9.pdf", "other-1"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		_ = os.Chtimes(p, old, old)
	}
	_ = os.Mkdir(filepath.Join(dir, "pdfdocx-fresh"), 0o700)

	if n := CleanupTemps(dir, time.Hour); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	left, _ := os.ReadDir(dir)
	if len(left) != 2 {
		t.Fatalf("left = %v", left)
	}
}
