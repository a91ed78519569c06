package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wiki-knowledge-platform/services"
	"wiki-knowledge-platform/utils"
)

type searchRequest struct {
	Query         string  `json:"query" binding:"required"`
	DocumentID    string  `json:"document_id"`
	MinRelevance  float64 `json:"min_relevance"`
	Limit         int     `json:"limit"`
	OptimizeQuery bool    `json:"optimize_query"`
	Answer        bool    `json:"answer"`
	ChatModelID   string  `json:"chat_model_id"`
}

func SetupSearchRoutes(router *gin.Engine, engine *services.RetrievalEngine) {
	router.POST("/wikis/:wikiId/search", func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := engine.Search(c.Request.Context(), services.SearchParams{
			WikiID:        c.Param("wikiId"),
			Query:         req.Query,
			DocumentID:    req.DocumentID,
			MinRelevance:  req.MinRelevance,
			Limit:         req.Limit,
			OptimizeQuery: req.OptimizeQuery,
			Answer:        req.Answer,
			ChatModelID:   req.ChatModelID,
		})
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})
}
