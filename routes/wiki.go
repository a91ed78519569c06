package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wiki-knowledge-platform/internal/store"
	"wiki-knowledge-platform/models"
	"wiki-knowledge-platform/services"
	"wiki-knowledge-platform/utils"
)

type createWikiRequest struct {
	Name            string               `json:"name" binding:"required"`
	Models          []models.ModelConfig `json:"models" binding:"required,min=1"`
	PreprocessKinds []string             `json:"preprocess_kinds"`
}

func SetupWikiRoutes(router *gin.Engine, wikis *store.WikiRepo) {
	group := router.Group("/wikis")

	group.POST("", func(c *gin.Context) {
		var req createWikiRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		for i := range req.Models {
			if req.Models[i].ID == "" {
				req.Models[i].ID = uuid.NewString()
			}
		}

		for _, kind := range req.PreprocessKinds {
			if !services.KnownStrategyKind(services.StrategyKind(kind)) {
				utils.RespondWithBadRequest(c, "Unknown preprocess kind", gin.H{"kind": kind})
				return
			}
		}

		wiki := &models.Wiki{
			ID:              uuid.NewString(),
			Name:            req.Name,
			Models:          req.Models,
			PreprocessKinds: req.PreprocessKinds,
		}
		if err := wikis.CreateWiki(c.Request.Context(), wiki); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusCreated, wiki)
	})

	group.GET("", func(c *gin.Context) {
		list, err := wikis.ListWikis(c.Request.Context())
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"wikis": list})
	})

	group.GET("/:wikiId", func(c *gin.Context) {
		wiki, err := wikis.GetWiki(c.Request.Context(), c.Param("wikiId"))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, wiki)
	})
}
