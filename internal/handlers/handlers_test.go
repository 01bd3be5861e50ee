package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/example/kyc-verify/internal/auth"
	"github.com/example/kyc-verify/internal/usecase"
)

const testJWTSecret = "test-secret"

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.MaxMultipartMemory = MaxDocumentSize
	RegisterRoutes(router, &usecase.VerificationUseCase{}, auth.JWTMiddleware(testJWTSecret, ""))
	return router
}

func TestVerifyRequiresAuthentication(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/verify", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
	}
}

func TestVerifyRejectsMissingDocumentPart(t *testing.T) {
	router := newTestRouter()

	body, contentType := buildMultipartBody(t, nil, part{field: "video", contentType: "video/webm", payload: []byte("vid")})
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestVerifyRejectsUnsupportedDocumentType(t *testing.T) {
	router := newTestRouter()

	body, contentType := buildMultipartBody(t,
		&part{field: "document", contentType: "text/plain", payload: []byte("hello")},
		part{field: "video", contentType: "video/webm", payload: []byte("vid")})
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestVerifyRejectsOversizedDocument(t *testing.T) {
	router := newTestRouter()

	body, contentType := buildMultipartBody(t,
		&part{field: "document", contentType: "image/png", payload: bytes.Repeat([]byte("a"), MaxDocumentSize+1)},
		part{field: "video", contentType: "video/webm", payload: []byte("vid")})
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+buildTestToken(t, "user-123"))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

type part struct {
	field       string
	contentType string
	payload     []byte
}

func buildMultipartBody(t *testing.T, document *part, extra ...part) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	parts := extra
	if document != nil {
		parts = append([]part{*document}, extra...)
	}
	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="upload"`)
		header.Set("Content-Type", p.contentType)
		w, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create multipart part: %v", err)
		}
		if _, err := w.Write(p.payload); err != nil {
			t.Fatalf("failed to write payload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
