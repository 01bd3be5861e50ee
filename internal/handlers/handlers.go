package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/kyc-verify/internal/auth"
	"github.com/example/kyc-verify/internal/usecase"
)

// Upload limits for the two multipart payloads.
const (
	MaxDocumentSize = 10 << 20
	MaxVideoSize    = 50 << 20
)

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.VerificationUseCase, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/", authMiddleware)
	protected.POST("/verify", verifyHandler(uc))
	protected.GET("/result/:id", resultHandler(uc))
	protected.GET("/result/:id/duplicates", duplicatesHandler(uc))
	protected.GET("/metrics/summary", metricsHandler(uc))
}

func verifyHandler(uc *usecase.VerificationUseCase) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		docHeader, err := formFile(c, "document", MaxDocumentSize, "image/")
		if err != nil {
			return // response already written
		}
		videoHeader, err := formFile(c, "video", MaxVideoSize, "video/")
		if err != nil {
			return
		}

		docBytes, err := readAll(docHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read document"})
			return
		}

		// The video is spooled to a scoped temp file so the media engine
		// can stream it; the file is removed on every exit path.
		videoFile, cleanup, err := spoolUpload(videoHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to buffer video"})
			return
		}
		defer cleanup()

		requestID, result, err := uc.Verify(c.Request.Context(), userID, docBytes, videoFile)
		if err != nil {
			if errors.Is(err, usecase.ErrDocumentUnreadable) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "document unreadable"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":  requestID,
			"final_score": result.FinalScore,
			"decision":    result.Outcome,
			"scores": gin.H{
				"document":     result.Scores.Document,
				"ocr":          result.Scores.OCR,
				"liveness":     result.Scores.Liveness,
				"cross_verify": result.Scores.CrossVerify,
				"face_match":   result.Scores.FaceMatch,
			},
		})
	}
}

func resultHandler(uc *usecase.VerificationUseCase) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		requestID := c.Param("id")

		log, err := uc.GetResult(c.Request.Context(), userID, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":  log.RequestID,
			"final_score": log.FinalScore,
			"decision":    log.Decision,
			"scores": gin.H{
				"document":     log.DocumentScore,
				"ocr":          log.OCRScore,
				"liveness":     log.LivenessScore,
				"cross_verify": log.CrossVerifyScore,
				"face_match":   log.FaceMatchScore,
			},
			"created_at": log.CreatedAt,
		})
	}
}

func duplicatesHandler(uc *usecase.VerificationUseCase) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		report, err := uc.GetDuplicateReport(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		duplicates := make([]gin.H, 0, len(report.Duplicates))
		for _, dup := range report.Duplicates {
			duplicates = append(duplicates, gin.H{
				"request_id": dup.RequestID,
				"decision":   dup.Decision,
				"created_at": dup.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"request_id": report.Request.RequestID,
			"duplicates": duplicates,
		})
	}
}

func metricsHandler(uc *usecase.VerificationUseCase) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// formFile fetches and validates a multipart upload, writing the error
// response itself so callers can just bail out.
func formFile(c *gin.Context, field string, maxSize int64, contentTypePrefix string) (*multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return nil, err
	}
	if header.Size > maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": field + " exceeds size limit"})
		return nil, errors.New("upload too large")
	}
	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, contentTypePrefix) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": field + " has unsupported content type"})
		return nil, errors.New("unsupported content type")
	}
	return header, nil
}

func readAll(header *multipart.FileHeader) ([]byte, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

// spoolUpload copies the upload to a temp file and returns it positioned at
// the start. cleanup closes and deletes the file and is safe on every exit
// path.
func spoolUpload(header *multipart.FileHeader) (io.Reader, func(), error) {
	src, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "kyc-upload-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	if _, err := io.Copy(tmp, src); err != nil {
		cleanup()
		return nil, nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, err
	}
	return tmp, cleanup, nil
}
