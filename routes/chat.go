package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediscan-backend/internal/chat"
	"mediscan-backend/internal/session"
	"mediscan-backend/models"
	"mediscan-backend/services"
	"mediscan-backend/utils"
)

// SetupChatRoutes wires the conversational endpoint. Each turn runs
// against the session's persisted chunks and index; concurrent turns on
// the same session serialize inside the orchestrator.
func SetupChatRoutes(router *gin.Engine, store *session.Store, docService *services.DocumentService, orchestrator *chat.Orchestrator) {
	router.POST("/chat", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "session_id and query are required", gin.H{"error": err.Error()})
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

		index, err := docService.LoadIndex(sess)
		if err != nil {
			utils.RespondWithFault(c, err)
			return
		}

		reply, err := orchestrator.Turn(c.Request.Context(), req.Query, index, chunks, sess.Chat)
		if err != nil {
			utils.RespondWithFault(c, err)
			return
		}

		history, topics, recommendations := sess.Chat.Snapshot()
		c.JSON(http.StatusOK, models.ChatResponse{
			SessionID:       sess.ID,
			Reply:           reply,
			HistorySize:     len(history),
			Topics:          topics,
			Recommendations: recommendations,
		})
	})
}
