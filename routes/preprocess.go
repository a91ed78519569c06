package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wiki-knowledge-platform/services"
	"wiki-knowledge-platform/utils"
)

type preprocessRequest struct {
	Kind      string `json:"kind" binding:"required"`
	Paragraph string `json:"paragraph"`
}

type preprocessManyRequest struct {
	Kinds     []string `json:"kinds" binding:"required,min=1"`
	Paragraph string   `json:"paragraph"`
}

type preprocessBatchRequest struct {
	Kind       string            `json:"kind" binding:"required"`
	Paragraphs map[string]string `json:"paragraphs" binding:"required"`
}

// SetupPreprocessRoutes exposes the derivation strategies directly, mainly
// for tuning prompts and inspecting what a wiki's strategies will produce.
func SetupPreprocessRoutes(router *gin.Engine, orchestrator *services.PreprocessOrchestrator) {
	group := router.Group("/preprocess")

	group.POST("/run", func(c *gin.Context) {
		var req preprocessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		result, err := orchestrator.Run(c.Request.Context(), req.Paragraph, services.StrategyKind(req.Kind))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	group.POST("/run-many", func(c *gin.Context) {
		var req preprocessManyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		kinds := make([]services.StrategyKind, len(req.Kinds))
		for i, k := range req.Kinds {
			kinds[i] = services.StrategyKind(k)
		}
		results, err := orchestrator.RunMany(c.Request.Context(), req.Paragraph, kinds)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})

	group.POST("/batch", func(c *gin.Context) {
		var req preprocessBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		results, err := orchestrator.RunBatch(c.Request.Context(), req.Paragraphs, services.StrategyKind(req.Kind))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})
}
