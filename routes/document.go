package routes

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"wiki-knowledge-platform/internal/store"
	"wiki-knowledge-platform/models"
	"wiki-knowledge-platform/services"
	"wiki-knowledge-platform/utils"
)

type createDocumentRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FileType string `json:"file_type"`
	Content  string `json:"content" binding:"required"`
}

type submitEmbeddingRequest struct {
	MaxTokensPerChunk int    `json:"max_tokens_per_chunk"`
	OverlapTokens     int    `json:"overlap_tokens"`
	TokenizerSpec     string `json:"tokenizer_spec"`
}

func SetupDocumentRoutes(
	router *gin.Engine,
	wikis *store.WikiRepo,
	documents *store.DocumentRepo,
	files *store.LocalFileStore,
	manager *services.TaskManager,
) {
	group := router.Group("/wikis/:wikiId/documents")

	group.POST("", func(c *gin.Context) {
		wikiID := c.Param("wikiId")
		var req createDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		if _, err := wikis.GetWiki(c.Request.Context(), wikiID); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		fileType := req.FileType
		if fileType == "" {
			if ext := filepath.Ext(req.FileName); len(ext) > 1 {
				fileType = ext[1:]
			}
		}

		path, err := files.Save(c.Request.Context(), filepath.Join(wikiID, req.FileName), []byte(req.Content))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		doc := &models.Document{
			ID:       uuid.NewString(),
			WikiID:   wikiID,
			FileName: req.FileName,
			FileType: fileType,
			FilePath: path,
			Content:  req.Content,
		}
		if err := documents.CreateDocument(c.Request.Context(), doc); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	})

	group.GET("", func(c *gin.Context) {
		docs, err := documents.ListDocuments(c.Request.Context(), c.Param("wikiId"))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		type documentWithTask struct {
			models.Document
			Task *models.EmbeddingTask `json:"task,omitempty"`
		}
		out := make([]documentWithTask, 0, len(docs))
		for _, doc := range docs {
			entry := documentWithTask{Document: doc}
			if task, err := manager.TaskStatus(c.Request.Context(), doc.ID); err == nil {
				entry.Task = task
			}
			out = append(out, entry)
		}
		c.JSON(http.StatusOK, gin.H{"documents": out})
	})

	group.DELETE("/:documentId", func(c *gin.Context) {
		err := manager.DeleteDocument(c.Request.Context(), c.Param("wikiId"), c.Param("documentId"))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	// Embedding task lifecycle.

	group.POST("/:documentId/embedding", func(c *gin.Context) {
		var req submitEmbeddingRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		task, err := manager.Submit(c.Request.Context(), c.Param("wikiId"), c.Param("documentId"), services.ChunkingParams{
			MaxTokensPerChunk: req.MaxTokensPerChunk,
			OverlapTokens:     req.OverlapTokens,
			TokenizerSpec:     req.TokenizerSpec,
		})
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, task)
	})

	group.POST("/:documentId/embedding/:taskId/cancel", func(c *gin.Context) {
		if err := manager.Cancel(c.Request.Context(), c.Param("documentId"), c.Param("taskId")); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cancelled": true})
	})

	group.GET("/:documentId/embedding", func(c *gin.Context) {
		task, err := manager.TaskStatus(c.Request.Context(), c.Param("documentId"))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	})

	group.DELETE("/:documentId/embedding", func(c *gin.Context) {
		err := manager.ClearEmbedding(c.Request.Context(), c.Param("wikiId"), c.Param("documentId"))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	})

	// Wiki-wide embedding clear.
	router.DELETE("/wikis/:wikiId/embedding", func(c *gin.Context) {
		if err := manager.ClearEmbedding(c.Request.Context(), c.Param("wikiId"), ""); err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	})
}
