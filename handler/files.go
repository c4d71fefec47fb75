package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/middleware"
	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/logger"
	"github.com/AnTengye/rollingquote/service"
	"github.com/AnTengye/rollingquote/service/extract"
)

// uploadStore is the object storage behind the file endpoints.
type uploadStore interface {
	Store(ctx context.Context, tenant, filename string, data []byte, contentType string, words int) (string, error)
	PresignedURL(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// wordAnalyzer counts the words of an uploaded file.
type wordAnalyzer interface {
	Analyze(ctx context.Context, name string, data []byte) (int, error)
}

type FileHandler struct {
	store    uploadStore
	analyzer wordAnalyzer
	maxBytes int64
}

func NewFileHandler(store uploadStore, analyzer wordAnalyzer, maxBytes int64) *FileHandler {
	return &FileHandler{store: store, analyzer: analyzer, maxBytes: maxBytes}
}

type uploadResponse struct {
	model.UploadedDocument
	LikelyScanned bool `json:"likely_scanned,omitempty"`
}

// Upload stores one document in the caller's namespace and records its word
// count with the object, so quoting never has to trust a client count.
func (h *FileHandler) Upload(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	ctx := c.Request.Context()

	// multipart overhead on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the size limit"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if int64(len(data)) > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the size limit"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	// A count that cannot be taken now is left to the quote, which retries it.
	words, err := h.analyzer.Analyze(ctx, header.Filename, data)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrUnsupportedFormat):
		respondError(c, err)
		return
	default:
		logger.Warn(ctx, "word count deferred to quote", "filename", header.Filename, "error", err)
		words = -1
	}

	ref, err := h.store.Store(ctx, tenant, header.Filename, data, contentType, words)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := uploadResponse{
		UploadedDocument: model.UploadedDocument{
			DisplayName:      header.Filename,
			StorageReference: ref,
		},
	}
	if words >= 0 {
		resp.ExtractedWordCount = &words
		resp.LikelyScanned = extract.LikelyScanned(header.Filename, words)
	}
	logger.Info(ctx, "file uploaded",
		"storage_reference", ref,
		"bytes", len(data),
		"words", words,
		"content_type", strings.SplitN(contentType, ";", 2)[0],
	)
	c.JSON(http.StatusOK, resp)
}

// Link returns a time-limited download URL for one of the caller's uploads.
func (h *FileHandler) Link(c *gin.Context) {
	ref := c.Query("ref")
	if err := service.ValidateReference(middleware.GetTenant(c), ref); err != nil {
		respondError(c, err)
		return
	}
	url, err := h.store.PresignedURL(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"storage_reference": ref, "url": url})
}

// Delete removes one of the caller's uploads. Quotes already built keep
// their counts; a later quote naming the file reports it as not found.
func (h *FileHandler) Delete(c *gin.Context) {
	ref := c.Query("ref")
	if err := service.ValidateReference(middleware.GetTenant(c), ref); err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.Delete(c.Request.Context(), ref); err != nil {
		respondError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "file deleted", "storage_reference", ref)
	c.JSON(http.StatusOK, gin.H{"message": "File deleted"})
}
