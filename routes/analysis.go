package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"mediscan-backend/internal/analysis"
	"mediscan-backend/internal/logger"
	"mediscan-backend/internal/report"
	"mediscan-backend/internal/session"
	"mediscan-backend/models"
	"mediscan-backend/services"
	"mediscan-backend/utils"
)

// SetupAnalysisRoutes wires the one-shot analysis endpoint and the
// table download endpoints.
func SetupAnalysisRoutes(router *gin.Engine, store *session.Store, docService *services.DocumentService, analyzer *analysis.Analyzer) {
	router.POST("/analyze", func(c *gin.Context) {
		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "session_id is required", gin.H{"error": err.Error()})
			return
		}

		sess, err := store.Get(req.SessionID)
		if err != nil {
			utils.RespondWithFault(c, err)
			return
		}

		chunks, err := store.LoadChunks(sess)
		if err != nil {
			utils.RespondWithFault(c, err)
			return
		}

		// Retrieval is best effort here. With no index the analyzer
		// falls back to the full report text.
		index, err := docService.LoadIndex(sess)
		if err != nil {
			logger.Warn("Analysis proceeding without retrieval", "session_id", sess.ID, "error", err)
			index = nil
		}

		text, usedRetrieval, err := analyzer.Analyze(c.Request.Context(), index, chunks)
		if err != nil {
			utils.RespondWithFault(c, err)
			return
		}
		sess.SetAnalysis(text)

		resp := models.AnalyzeResponse{
			SessionID:     sess.ID,
			Analysis:      text,
			UsedRetrieval: usedRetrieval,
		}

		// Table extraction and export never fail the analysis. A report
		// without a parseable table still returns its analysis text.
		rows := report.ExtractTable(text)
		resp.TableRows = len(rows)
		if len(rows) > 0 {
			if err := report.SaveCSV(rows, sess.CSVPath); err != nil {
				logger.Error("CSV export failed", "session_id", sess.ID, "error", err)
			} else {
				resp.TableCSV = "/table/" + sess.ID + "/csv"
			}
			if err := report.SaveXLSX(rows, sess.XLSXPath); err != nil {
				logger.Error("XLSX export failed", "session_id", sess.ID, "error", err)
			} else {
				resp.TableXLSX = "/table/" + sess.ID + "/xlsx"
			}
		}

		c.JSON(http.StatusOK, resp)
	})

	router.GET("/table/:session_id/csv", func(c *gin.Context) {
		serveTable(c, store, func(sess *session.Session) string { return sess.CSVPath })
	})

	router.GET("/table/:session_id/xlsx", func(c *gin.Context) {
		serveTable(c, store, func(sess *session.Session) string { return sess.XLSXPath })
	})
}

func serveTable(c *gin.Context, store *session.Store, pathOf func(*session.Session) string) {
	sess, err := store.Get(c.Param("session_id"))
	if err != nil {
		utils.RespondWithFault(c, err)
		return
	}
	path := pathOf(sess)
	if _, err := os.Stat(path); err != nil {
		utils.RespondWithNotFound(c, "No table has been generated for this session")
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
