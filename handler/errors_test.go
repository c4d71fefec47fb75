package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/model"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{"field validation", model.NewValidationError("orderId", "is required"), http.StatusBadRequest, ""},
		{"plain validation", fmt.Errorf("x: %w", model.ErrValidation), http.StatusBadRequest, "Invalid request"},
		{"unsupported pair", model.UnsupportedPair(model.LanguagePair{Source: "a", Target: "b"}), http.StatusUnprocessableEntity, "Unsupported language pair"},
		{"unreadable file", fmt.Errorf("%w: open PDF: secret detail", model.ErrUnsupportedFormat), http.StatusUnprocessableEntity, "Unsupported or unreadable file format"},
		{"signature", model.ErrSignatureVerification, http.StatusBadRequest, "Invalid signature"},
		{"forbidden", model.ErrForbidden, http.StatusForbidden, "Access denied"},
		{"not found", fmt.Errorf("order x: %w", model.ErrNotFound), http.StatusNotFound, "Not found"},
		{"not paid", model.ErrNotPaid, http.StatusConflict, "Order is not paid"},
		{"already notified", model.ErrAlreadyNotified, http.StatusConflict, "Confirmation already sent"},
		{"conflict", model.ErrConflict, http.StatusConflict, ""},
		{"upstream", model.Upstream("stripe", errors.New("secret detail")), http.StatusBadGateway, ""},
		{"unknown", errors.New("secret detail"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/x", func(c *gin.Context) { respondError(c, tt.err) })
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			expectStatus(t, w, tt.expectedStatus)
			body := decode(t, w)
			if tt.expectedError != "" && body["error"] != tt.expectedError {
				t.Errorf("Expected error %q, got %v", tt.expectedError, body["error"])
			}
			if msg, _ := body["error"].(string); msg == "" || strings.Contains(msg, "secret detail") {
				t.Errorf("Unexpected client message %q", msg)
			}
		})
	}
}
