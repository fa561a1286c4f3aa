package main

import (
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/ejc3/workflow/internal/authn"
	"github.com/ejc3/workflow/internal/httpapi"
	"github.com/ejc3/workflow/pkg/storage"
)

type createHookRequest struct {
	RunID    string         `json:"runId" binding:"required"`
	Token    string         `json:"token" binding:"required"`
	Metadata datatypes.JSON `json:"metadata"`
}

// createHook resolves the owner/project/environment tuple from the
// request's authenticated identity, per SPEC_FULL.md's resolution of
// spec.md §9's open question (c): Storage never calls AuthProvider itself.
func (s *server) createHook(c *gin.Context) {
	var req createHookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Error(c, badRequest(err))
		return
	}
	identity := authn.IdentityFrom(c)
	hook, err := s.world.Storage.Hooks.Create(c.Request.Context(), storage.CreateHookInput{
		RunID:       req.RunID,
		Token:       req.Token,
		OwnerID:     identity.OwnerID,
		ProjectID:   identity.ProjectID,
		Environment: identity.Environment,
		Metadata:    req.Metadata,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Created(c, hook)
}

func (s *server) getHookByToken(c *gin.Context) {
	hook, err := s.world.Storage.Hooks.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, hook)
}

func (s *server) disposeHook(c *gin.Context) {
	hook, err := s.world.Storage.Hooks.Dispose(c.Request.Context(), c.Param("hookId"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, hook)
}
