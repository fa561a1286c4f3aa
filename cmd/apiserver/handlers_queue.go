package main

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/ejc3/workflow/internal/httpapi"
	"github.com/ejc3/workflow/pkg/queue"
)

type enqueueRequest struct {
	Name           string          `json:"name" binding:"required"`
	Message        json.RawMessage `json:"message" binding:"required"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

func (s *server) enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Error(c, badRequest(err))
		return
	}
	result, err := s.world.Queue.Enqueue(c.Request.Context(), req.Name, req.Message, queue.EnqueueOptions{IdempotencyKey: req.IdempotencyKey})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Created(c, result)
}

func (s *server) getJobByIdempotencyKey(c *gin.Context) {
	job, err := s.world.Queue.FindByIdempotencyKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, job)
}
