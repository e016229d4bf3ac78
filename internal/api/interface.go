package api

import "github.com/gin-gonic/gin"

// PipelineHandlerInterface defines the contract for HTTP request handlers.
type PipelineHandlerInterface interface {
	Completion(c *gin.Context)
	GetJob(c *gin.Context)
	ListDead(c *gin.Context)
	Replay(c *gin.Context)
}
