package main

import (
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/ejc3/workflow/internal/httpapi"
	"github.com/ejc3/workflow/pkg/storage"
)

type createRunRequest struct {
	DeploymentID     string         `json:"deploymentId" binding:"required"`
	WorkflowName     string         `json:"workflowName" binding:"required"`
	Input            datatypes.JSON `json:"input"`
	ExecutionContext datatypes.JSON `json:"executionContext"`
}

func (s *server) createRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Error(c, badRequest(err))
		return
	}
	run, err := s.world.Storage.Runs.Create(c.Request.Context(), storage.CreateRunInput{
		DeploymentID:     req.DeploymentID,
		WorkflowName:     req.WorkflowName,
		Input:            req.Input,
		ExecutionContext: req.ExecutionContext,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Created(c, run)
}

func (s *server) getRun(c *gin.Context) {
	run, err := s.world.Storage.Runs.Get(c.Request.Context(), c.Param("runId"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, run)
}

type updateRunRequest struct {
	Status           *storage.RunStatus `json:"status"`
	Output           datatypes.JSON     `json:"output"`
	ExecutionContext datatypes.JSON     `json:"executionContext"`
	Error            *string            `json:"error"`
	ErrorCode        *string            `json:"errorCode"`
}

func (s *server) updateRun(c *gin.Context) {
	var req updateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Error(c, badRequest(err))
		return
	}
	run, err := s.world.Storage.Runs.Update(c.Request.Context(), c.Param("runId"), storage.UpdateRunInput{
		Status:           req.Status,
		Output:           req.Output,
		ExecutionContext: req.ExecutionContext,
		Error:            req.Error,
		ErrorCode:        req.ErrorCode,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, run)
}

func (s *server) cancelRun(c *gin.Context) {
	run, err := s.world.Storage.Runs.Cancel(c.Request.Context(), c.Param("runId"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, run)
}

func (s *server) pauseRun(c *gin.Context) {
	run, err := s.world.Storage.Runs.Pause(c.Request.Context(), c.Param("runId"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, run)
}

func (s *server) resumeRun(c *gin.Context) {
	run, err := s.world.Storage.Runs.Resume(c.Request.Context(), c.Param("runId"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, run)
}

func (s *server) listRuns(c *gin.Context) {
	params := storage.ListRunsParams{
		WorkflowName: c.Query("workflowName"),
		Status:       storage.RunStatus(c.Query("status")),
		Page: storage.Page{
			Cursor: c.Query("cursor"),
			Limit:  queryInt(c, "limit", 0),
		},
	}
	result, err := s.world.Storage.Runs.List(c.Request.Context(), params)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, result)
}
