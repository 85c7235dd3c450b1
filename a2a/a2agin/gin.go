// Package a2agin mounts the task transport onto a gin engine, for programs
// already built on gin. Semantics match a2ahttp.
package a2agin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mark3labs/x402-a2a-go/a2a"
	"github.com/mark3labs/x402-a2a-go/a2a/a2ahttp"
)

// Register adds the agent card and task routes to a gin router:
//
//	GET  /.well-known/agent.json
//	POST /a2a/tasks
func Register(r gin.IRouter, card a2a.AgentCard, handler a2ahttp.TaskHandler, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	r.GET("/.well-known/agent.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, card)
	})

	r.POST("/a2a/tasks", func(c *gin.Context) {
		var task a2a.Task
		if err := c.ShouldBindJSON(&task); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed task"})
			return
		}
		if task.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task id required"})
			return
		}

		a2a.EchoExtension(c.Writer, c.Request)

		result, err := handler.HandleTask(c.Request, &task)
		if err != nil {
			logger.Error("task handling failed", "taskId", task.ID, "error", err)
			if result == nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}

		c.JSON(http.StatusOK, result)
	})
}
