package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/insurepal/internal/config"
	"github.com/hyperjump/insurepal/internal/embedding"
	"github.com/hyperjump/insurepal/internal/keyword"
	"github.com/hyperjump/insurepal/internal/llm"
	"github.com/hyperjump/insurepal/internal/models"
	"github.com/hyperjump/insurepal/internal/storage"
	"github.com/hyperjump/insurepal/internal/vectorstore"
	"go.uber.org/zap"
)

const testDim = 128

type testServer struct {
	srv     *Server
	handler http.Handler
	store   *vectorstore.MemoryStore
	ledger  *storage.SQLiteLedger
	tempDir string
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Provider:    config.ProviderConfig{Type: "offline"},
		VectorStore: config.VectorStoreConfig{Type: vectorstore.TypeMemory, Dimension: testDim},
		Storage: config.StorageConfig{
			DatabasePath: filepath.Join(dir, "db.sqlite"),
			TempDir:      t.TempDir(),
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	config.ApplyDefaults(cfg)

	store, err := vectorstore.NewMemoryStore(cfg.VectorStore.IndexName, testDim)
	if err != nil {
		t.Fatal(err)
	}
	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	srv := NewServer(cfg, store, embedding.NewHashEmbedder(testDim), llm.NewExtractiveGenerator(), ledger, kw, zap.NewNop())
	return &testServer{srv: srv, handler: srv.Handler(), store: store, ledger: ledger, tempDir: cfg.Storage.TempDir}
}

func docx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("word/document.xml")
	_, _ = f.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func uploadRequest(t *testing.T, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(content)
	}
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/upload/", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func queryRequest(question *string, namespace string) *http.Request {
	form := url.Values{}
	if question != nil {
		form.Set("question", *question)
	}
	if namespace != "" {
		form.Set("namespace", namespace)
	}
	r := httptest.NewRequest(http.MethodPost, "/query/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func (ts *testServer) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func strPtr(s string) *string { return &s }

func sessionIsolation(c *config.Config) { c.VectorStore.Isolation = config.IsolationSession }

func TestUploadAndQuery_roundTrip(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(uploadRequest(t, "policy.docx", docx("The policy deductible is $500."), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}
	up := decode[uploadResponse](t, w)
	if up.Message != "File 'policy.docx' uploaded and indexed successfully" {
		t.Errorf("message = %q", up.Message)
	}
	if up.Namespace != "" || up.DocumentID == "" || up.Chunks != 1 {
		t.Errorf("unexpected upload response %+v", up)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			t.Error("shared isolation should not set a session cookie")
		}
	}

	// A query carrying only the question sees every earlier upload.
	r := queryRequest(strPtr("What is the deductible?"), "")
	w = ts.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("query status %d: %s", w.Code, w.Body.String())
	}
	if ans := decode[queryResponse](t, w).Answer; !strings.Contains(ans, "500") {
		t.Errorf("answer %q should contain 500", ans)
	}
	if n, _ := ts.ledger.CountUploads(r.Context()); n != 1 {
		t.Errorf("ledger uploads = %d", n)
	}
}

func TestQuery_sharedIgnoresNamespace(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(uploadRequest(t, "policy.docx", docx("The policy deductible is $500."), map[string]string{"namespace": "team-a"}))
	if up := decode[uploadResponse](t, w); up.Namespace != "" {
		t.Errorf("shared namespace = %q", up.Namespace)
	}
	w = ts.do(queryRequest(strPtr("What is the deductible?"), "team-b"))
	if ans := decode[queryResponse](t, w).Answer; !strings.Contains(ans, "500") {
		t.Errorf("answer %q should contain 500", ans)
	}
}

func TestUploadAndQuery_sessionCookie(t *testing.T) {
	ts := newTestServer(t, sessionIsolation)

	w := ts.do(uploadRequest(t, "policy.docx", docx("The policy deductible is $500."), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}
	up := decode[uploadResponse](t, w)
	if up.Namespace == "" {
		t.Fatalf("session upload should get a namespace: %+v", up)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != up.Namespace {
		t.Fatalf("session cookie not set to namespace: %+v", cookie)
	}

	// The cookie alone selects the namespace.
	r := queryRequest(strPtr("What is the deductible?"), "")
	r.AddCookie(cookie)
	w = ts.do(r)
	if ans := decode[queryResponse](t, w).Answer; !strings.Contains(ans, "500") {
		t.Errorf("answer %q should contain 500", ans)
	}
}

func TestQuery_sessionWithoutNamespaceIsEmpty(t *testing.T) {
	ts := newTestServer(t, sessionIsolation)
	if w := ts.do(uploadRequest(t, "policy.docx", docx("The policy deductible is $500."), nil)); w.Code != http.StatusOK {
		t.Fatalf("upload status %d", w.Code)
	}
	w := ts.do(queryRequest(strPtr("What is the deductible?"), ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if ans := decode[queryResponse](t, w).Answer; ans != models.EmptyResponse {
		t.Errorf("answer = %q, want %q", ans, models.EmptyResponse)
	}
}

func TestQuery_emptyQuestion(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(uploadRequest(t, "policy.docx", docx("The policy deductible is $500."), map[string]string{"namespace": "ns1"}))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status %d", w.Code)
	}
	w = ts.do(queryRequest(strPtr(""), "ns1"))
	if w.Code != http.StatusOK {
		t.Fatalf("empty question status %d: %s", w.Code, w.Body.String())
	}
	if ans := decode[queryResponse](t, w).Answer; ans == "" {
		t.Error("expected an answer string")
	}
}

func TestQuery_missingQuestion(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(queryRequest(nil, "ns1"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", w.Code)
	}
	if e := decode[errorResponse](t, w); e.Kind != "invalid_input" {
		t.Errorf("kind = %q", e.Kind)
	}
}

func TestUpload_unsupportedFormat(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, name := range []string{"notes.txt", "sheet.xlsx", "README"} {
		w := ts.do(uploadRequest(t, name, []byte("The policy deductible is $500."), nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", name, w.Code)
			continue
		}
		e := decode[errorResponse](t, w)
		if e.Detail != "Unsupported file type." || e.Kind != "unsupported_format" {
			t.Errorf("%s: unexpected body %+v", name, e)
		}
	}
	if ts.store.Size() != 0 {
		t.Errorf("store should be empty, has %d vectors", ts.store.Size())
	}
}

func TestUpload_missingFile(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(uploadRequest(t, "", nil, map[string]string{"namespace": "x"}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", w.Code)
	}
	if e := decode[errorResponse](t, w); e.Detail != "Field 'file' is required." {
		t.Errorf("detail = %q", e.Detail)
	}
}

func TestUpload_corruptFile(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(uploadRequest(t, "broken.pdf", []byte("not a pdf"), nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	e := decode[errorResponse](t, w)
	if !strings.HasPrefix(e.Detail, "Failed to process file 'broken.pdf': ") || e.Kind != "extraction_failure" {
		t.Errorf("unexpected body %+v", e)
	}
}

func TestUpload_tooLarge(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadMB = 1 })
	w := ts.do(uploadRequest(t, "big.docx", bytes.Repeat([]byte("a"), 2<<20), nil))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d", w.Code)
	}
}

func TestUpload_noTrailingSlash(t *testing.T) {
	ts := newTestServer(t, nil)
	r := uploadRequest(t, "policy.docx", docx("Premiums are due monthly."), nil)
	r.URL.Path = "/upload"
	if w := ts.do(r); w.Code != http.StatusOK {
		t.Errorf("status %d", w.Code)
	}
}

func TestNamespaceHeader(t *testing.T) {
	ts := newTestServer(t, sessionIsolation)
	r := uploadRequest(t, "policy.docx", docx("The policy deductible is $500."), nil)
	r.Header.Set(NamespaceHeader, "team-a")
	w := ts.do(r)
	if up := decode[uploadResponse](t, w); up.Namespace != "team-a" {
		t.Fatalf("namespace = %q", up.Namespace)
	}
	q := queryRequest(strPtr("deductible"), "")
	q.Header.Set(NamespaceHeader, "team-a")
	if ans := decode[queryResponse](t, ts.do(q)).Answer; !strings.Contains(ans, "500") {
		t.Errorf("answer %q", ans)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || decode[map[string]string](t, w)["status"] != "ok" {
		t.Errorf("health: %d", w.Code)
	}
}

func TestStatusAndDocuments(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		sessionIsolation(c)
		c.Retrieval.Hybrid = true
	})
	w := ts.do(uploadRequest(t, "policy.docx", docx("The policy deductible is $500."), map[string]string{"namespace": "ns1"}))
	up := decode[uploadResponse](t, w)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code %d", w.Code)
	}
	status := decode[map[string]interface{}](t, w)
	if status["uploads"].(float64) != 1 || status["hybrid"] != true || status["vector_store_type"] != "memory" {
		t.Errorf("unexpected status %v", status)
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents?namespace=ns1", nil))
	var list struct {
		Documents []*models.UploadRecord `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Documents) != 1 || list.Documents[0].ID != up.DocumentID {
		t.Errorf("unexpected documents %+v", list.Documents)
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Documents) != 0 {
		t.Error("listing without a namespace should be empty under session isolation")
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+up.DocumentID+"?namespace=ns1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("get document: %d", w.Code)
	}
	for _, target := range []string{"?namespace=ns2", ""} {
		w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+up.DocumentID+target, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("document visible from namespace %q: %d", target, w.Code)
		}
	}
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing document: %d", w.Code)
	}
}

func TestDocuments_shared(t *testing.T) {
	ts := newTestServer(t, nil)
	up := decode[uploadResponse](t, ts.do(uploadRequest(t, "policy.docx", docx("Premiums are due monthly."), nil)))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents?namespace=other", nil))
	var list struct {
		Documents []*models.UploadRecord `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Documents) != 1 || list.Documents[0].ID != up.DocumentID {
		t.Errorf("shared listing = %+v", list.Documents)
	}
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+up.DocumentID, nil))
	if w.Code != http.StatusOK {
		t.Errorf("get document: %d", w.Code)
	}
}

func TestCORS_allowsEveryMethod(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, method := range []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE"} {
		r := httptest.NewRequest(http.MethodOptions, "/query/", nil)
		r.Header.Set("Origin", "http://localhost:7860")
		r.Header.Set("Access-Control-Request-Method", method)
		w := ts.do(r)
		if got := w.Header().Get("Access-Control-Allow-Methods"); got != method {
			t.Errorf("%s preflight: allow methods = %q", method, got)
		}
	}
}

func TestCORS_reflectsOrigin(t *testing.T) {
	ts := newTestServer(t, nil)
	r := httptest.NewRequest(http.MethodOptions, "/query/", nil)
	r.Header.Set("Origin", "http://localhost:7860")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := ts.do(r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:7860" {
		t.Errorf("allow origin = %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials should be allowed")
	}
}
