package routes

import (
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"mediscan-backend/internal/config"
	"mediscan-backend/internal/logger"
	"mediscan-backend/internal/session"
	"mediscan-backend/models"
	"mediscan-backend/services"
	"mediscan-backend/utils"
)

// SetupDocumentRoutes wires upload, reset and health endpoints.
func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, store *session.Store, docService *services.DocumentService) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": store.Count(),
		})
	})

	router.POST("/upload", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A PDF file is required under the 'file' form field", nil)
			return
		}

		if err := validateUpload(fileHeader, cfg); err != "" {
			utils.RespondWithBadRequest(c, err, gin.H{"file": fileHeader.Filename})
			return
		}

		sess := store.Create(fileHeader.Filename)

		if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
			logger.Error("Failed to create upload directory", "error", err)
			utils.RespondWithInternalError(c, "Failed to store uploaded file", nil)
			return
		}
		uploadPath := filepath.Join(cfg.UploadDir, sess.ID+"_"+filepath.Base(fileHeader.Filename))
		if err := c.SaveUploadedFile(fileHeader, uploadPath); err != nil {
			logger.Error("Failed to save upload", "session_id", sess.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to store uploaded file", nil)
			return
		}
		defer os.Remove(uploadPath)

		result, err := docService.Process(c.Request.Context(), sess, uploadPath)
		if err != nil {
			logger.Error("Document processing failed", "session_id", sess.ID, "error", err)
			store.Delete(sess.ID)
			utils.RespondWithFault(c, err)
			return
		}

		message := "Document processed and indexed"
		if !result.Indexed {
			message = "Document processed; retrieval unavailable for this session"
		}

		c.JSON(http.StatusOK, models.UploadResponse{
			SessionID: sess.ID,
			FileName:  fileHeader.Filename,
			Pages:     result.Pages,
			Chunks:    result.Chunks,
			Indexed:   result.Indexed,
			Message:   message,
		})
	})

	router.DELETE("/session/:session_id", func(c *gin.Context) {
		id := c.Param("session_id")
		if err := store.Delete(id); err != nil {
			utils.RespondWithFault(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ResetResponse{
			SessionID: id,
			Message:   "Session and all its artifacts removed",
		})
	})
}

// validateUpload returns an empty string when the upload is acceptable,
// else the rejection reason.
func validateUpload(fileHeader *multipart.FileHeader, cfg *config.Config) string {
	if fileHeader.Size == 0 {
		return "Uploaded file is empty"
	}
	if fileHeader.Size > cfg.MaxFileSize {
		return "File exceeds the maximum allowed size"
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return "Only PDF files are supported"
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	for _, allowed := range cfg.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), contentType) {
			return ""
		}
	}
	return "Unsupported content type: " + contentType
}
