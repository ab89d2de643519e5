package http

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mathclass/mathclass-lms/internal/storage"
)

func newBlobStore(t *testing.T) *storage.FSStore {
	t.Helper()
	bs, err := storage.NewFSStore(t.TempDir(), "http://localhost/assets")
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return bs
}

func TestDownloadAssetNeedsNoAuth(t *testing.T) {
	bs := newBlobStore(t)
	key := storage.UploadKey("worksheet.pdf")
	if _, err := bs.Put(key, strings.NewReader("fraction drills")); err != nil {
		t.Fatalf("put: %v", err)
	}

	// mounted the way main does on the public surface: no auth middleware
	r := chi.NewRouter()
	r.Get("/assets/*", DownloadAssetHandler(bs))

	req := httptest.NewRequest(http.MethodGet, "/assets/"+key, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "fraction drills" {
		t.Fatalf("body = %q", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/assets/nope.pdf", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing key status = %d, want 404", rec.Code)
	}
}

func TestUploadAssetRoundTrip(t *testing.T) {
	bs := newBlobStore(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := io.WriteString(fw, "distributive property"); err != nil {
		t.Fatalf("write: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	UploadAssetHandler(bs)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"key"`) || !strings.Contains(rec.Body.String(), `"url"`) {
		t.Fatalf("body = %s, want key and url", rec.Body.String())
	}
}
