package handler

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/service/extract"
)

type storedObject struct {
	tenant, filename, contentType string
	words                         int
	size                          int
}

type fakeUploadStore struct {
	stored  []storedObject
	deleted []string
	err     error
}

func (f *fakeUploadStore) Store(_ context.Context, tenant, filename string, data []byte, contentType string, words int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.stored = append(f.stored, storedObject{tenant, filename, contentType, words, len(data)})
	return fmt.Sprintf("uploads/%s/%d-%s", tenant, len(f.stored), filename), nil
}

func (f *fakeUploadStore) PresignedURL(_ context.Context, ref string) (string, error) {
	return "https://minio.example.com/" + ref + "?X-Amz-Signature=abc", f.err
}

func (f *fakeUploadStore) Delete(_ context.Context, ref string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, ref)
	return nil
}

type fakeAnalyzer struct {
	words int
	err   error
}

func (f fakeAnalyzer) Analyze(context.Context, string, []byte) (int, error) {
	return f.words, f.err
}

// extractAnalyzer runs the real extractors so parser errors reach the handler.
type extractAnalyzer struct{}

func (extractAnalyzer) Analyze(_ context.Context, name string, data []byte) (int, error) {
	text, err := extract.Extract(data, name)
	return extract.CountWords(text), err
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestFileHandlerUpload(t *testing.T) {
	tests := []struct {
		name           string
		filename       string
		content        []byte
		analyzer       fakeAnalyzer
		expectedStatus int
		expectedWords  int
		stored         bool
	}{
		{
			name:           "counted",
			filename:       "brochure.txt",
			content:        []byte("one two three"),
			analyzer:       fakeAnalyzer{words: 3},
			expectedStatus: http.StatusOK,
			expectedWords:  3,
			stored:         true,
		},
		{
			name:           "unsupported format is not stored",
			filename:       "broken.pdf",
			content:        []byte("%PDF-garbage"),
			analyzer:       fakeAnalyzer{err: model.ErrUnsupportedFormat},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "timeout defers the count",
			filename:       "huge.docx",
			content:        []byte("PK"),
			analyzer:       fakeAnalyzer{err: model.Upstream("extract huge.docx", context.DeadlineExceeded)},
			expectedStatus: http.StatusOK,
			expectedWords:  -1,
			stored:         true,
		},
		{
			name:           "too large",
			filename:       "big.txt",
			content:        bytes.Repeat([]byte("a "), 600),
			analyzer:       fakeAnalyzer{words: 600},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUploadStore{}
			h := NewFileHandler(store, tt.analyzer, 1000)

			router := gin.New()
			router.POST("/files", asUser("tenant1", "client"), h.Upload)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartUpload(t, tt.filename, tt.content))

			expectStatus(t, w, tt.expectedStatus)
			if !tt.stored {
				if len(store.stored) != 0 {
					t.Errorf("Expected nothing stored, got %v", store.stored)
				}
				return
			}
			if len(store.stored) != 1 {
				t.Fatalf("Expected one stored object, got %d", len(store.stored))
			}
			obj := store.stored[0]
			if obj.tenant != "tenant1" || obj.filename != tt.filename || obj.words != tt.expectedWords {
				t.Errorf("Unexpected stored object %+v", obj)
			}

			body := decode(t, w)
			if body["storage_reference"] != "uploads/tenant1/1-"+tt.filename {
				t.Errorf("Unexpected storage reference %v", body["storage_reference"])
			}
			_, hasCount := body["extracted_word_count"]
			if hasCount != (tt.expectedWords >= 0) {
				t.Errorf("Expected word count present=%v, got %v", tt.expectedWords >= 0, body)
			}
		})
	}
}

func TestFileHandlerUploadHidesParserErrors(t *testing.T) {
	for _, filename := range []string{"broken.pdf", "broken.docx", "broken.xlsx", "broken.xls"} {
		t.Run(filename, func(t *testing.T) {
			store := &fakeUploadStore{}
			h := NewFileHandler(store, extractAnalyzer{}, 1000)

			router := gin.New()
			router.POST("/files", asUser("tenant1", "client"), h.Upload)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartUpload(t, filename, []byte("not a real document at all")))

			expectStatus(t, w, http.StatusUnprocessableEntity)
			body := decode(t, w)
			if body["error"] != "Unsupported or unreadable file format" {
				t.Errorf("Expected fixed error message, got %v", body["error"])
			}
			raw := w.Body.String()
			for _, leak := range []string{"PDF", "DOCX", "XLS", "zip", "spreadsheet", "unsupported format:"} {
				if strings.Contains(raw, leak) {
					t.Errorf("Response leaks parser detail %q: %s", leak, raw)
				}
			}
			if len(store.stored) != 0 {
				t.Errorf("Expected nothing stored, got %v", store.stored)
			}
		})
	}
}

func TestFileHandlerUploadWithoutFile(t *testing.T) {
	h := NewFileHandler(&fakeUploadStore{}, fakeAnalyzer{}, 1000)
	router := gin.New()
	router.POST("/files", asUser("tenant1", "client"), h.Upload)

	w := doJSON(t, router, http.MethodPost, "/files", map[string]string{"file": "nope"})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestFileHandlerStoreFailure(t *testing.T) {
	h := NewFileHandler(&fakeUploadStore{err: model.Upstream("minio put", context.Canceled)}, fakeAnalyzer{words: 1}, 1000)
	router := gin.New()
	router.POST("/files", asUser("tenant1", "client"), h.Upload)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "a.txt", []byte("a")))
	expectStatus(t, w, http.StatusBadGateway)
}

func TestFileHandlerLinkAndDelete(t *testing.T) {
	store := &fakeUploadStore{}
	h := NewFileHandler(store, fakeAnalyzer{}, 1000)
	router := gin.New()
	router.GET("/files/link", asUser("tenant1", "client"), h.Link)
	router.DELETE("/files", asUser("tenant1", "client"), h.Delete)

	tests := []struct {
		name           string
		method         string
		ref            string
		expectedStatus int
	}{
		{"link own file", http.MethodGet, "uploads/tenant1/abc-doc.pdf", http.StatusOK},
		{"link other tenant", http.MethodGet, "uploads/tenant2/abc-doc.pdf", http.StatusForbidden},
		{"link traversal", http.MethodGet, "uploads/tenant1/../tenant2/x.pdf", http.StatusForbidden},
		{"link missing ref", http.MethodGet, "", http.StatusBadRequest},
		{"delete own file", http.MethodDelete, "uploads/tenant1/abc-doc.pdf", http.StatusOK},
		{"delete other tenant", http.MethodDelete, "uploads/tenant2/abc-doc.pdf", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/files/link"
			if tt.method == http.MethodDelete {
				path = "/files"
			}
			w := doJSON(t, router, tt.method, path+"?ref="+url.QueryEscape(tt.ref), nil)
			expectStatus(t, w, tt.expectedStatus)
		})
	}

	if len(store.deleted) != 1 || store.deleted[0] != "uploads/tenant1/abc-doc.pdf" {
		t.Errorf("Expected only the own file deleted, got %v", store.deleted)
	}
}
