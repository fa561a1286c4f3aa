package main

import (
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/ejc3/workflow/internal/httpapi"
	"github.com/ejc3/workflow/pkg/storage"
)

type createStepRequest struct {
	StepID   string         `json:"stepId"`
	RunID    string         `json:"runId" binding:"required"`
	StepName string         `json:"stepName" binding:"required"`
	Input    datatypes.JSON `json:"input"`
	Attempt  int            `json:"attempt"`
}

func (s *server) createStep(c *gin.Context) {
	var req createStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Error(c, badRequest(err))
		return
	}
	step, err := s.world.Storage.Steps.Create(c.Request.Context(), req.StepID, storage.CreateStepInput{
		RunID:    req.RunID,
		StepName: req.StepName,
		Input:    req.Input,
		Attempt:  req.Attempt,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Created(c, step)
}

func (s *server) getStep(c *gin.Context) {
	step, err := s.world.Storage.Steps.Get(c.Request.Context(), c.Param("stepId"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, step)
}

type updateStepRequest struct {
	Status           *storage.StepStatus `json:"status"`
	Output           datatypes.JSON      `json:"output"`
	Error            *string             `json:"error"`
	ErrorCode        *string             `json:"errorCode"`
	IncrementAttempt bool                `json:"incrementAttempt"`
}

func (s *server) updateStep(c *gin.Context) {
	var req updateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Error(c, badRequest(err))
		return
	}
	step, err := s.world.Storage.Steps.Update(c.Request.Context(), c.Param("stepId"), storage.UpdateStepInput{
		Status:           req.Status,
		Output:           req.Output,
		Error:            req.Error,
		ErrorCode:        req.ErrorCode,
		IncrementAttempt: req.IncrementAttempt,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, step)
}

func (s *server) listStepsByRun(c *gin.Context) {
	steps, err := s.world.Storage.Steps.ListByRun(c.Request.Context(), c.Param("runId"), storage.Page{
		Cursor: c.Query("cursor"),
		Limit:  queryInt(c, "limit", 0),
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, steps)
}
