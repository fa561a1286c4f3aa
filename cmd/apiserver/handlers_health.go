package main

import (
	"github.com/gin-gonic/gin"

	"github.com/ejc3/workflow/internal/authn"
	"github.com/ejc3/workflow/internal/httpapi"
)

func (s *server) health(c *gin.Context) {
	httpapi.Success(c, s.world.Health(c.Request.Context(), authn.IdentityFrom(c)))
}
