package main

import (
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/ejc3/workflow/internal/httpapi"
	"github.com/ejc3/workflow/pkg/storage"
)

type createEventRequest struct {
	RunID         string         `json:"runId" binding:"required"`
	EventType     string         `json:"eventType" binding:"required"`
	CorrelationID *string        `json:"correlationId"`
	EventData     datatypes.JSON `json:"eventData"`
}

func (s *server) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.Error(c, badRequest(err))
		return
	}
	event, err := s.world.Storage.Events.Create(c.Request.Context(), storage.CreateEventInput{
		RunID:         req.RunID,
		EventType:     req.EventType,
		CorrelationID: req.CorrelationID,
		EventData:     req.EventData,
	})
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Created(c, event)
}

func (s *server) listEventsByRun(c *gin.Context) {
	events, err := s.world.Storage.Events.ListByRun(c.Request.Context(), c.Param("runId"), pageFrom(c), orderFrom(c))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, events)
}

func (s *server) listEventsByCorrelation(c *gin.Context) {
	events, err := s.world.Storage.Events.ListByCorrelationID(c.Request.Context(), c.Query("correlationId"), pageFrom(c), orderFrom(c))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Success(c, events)
}

func pageFrom(c *gin.Context) storage.Page {
	return storage.Page{Cursor: c.Query("cursor"), Limit: queryInt(c, "limit", 0)}
}

func orderFrom(c *gin.Context) storage.SortOrder {
	if c.Query("order") == string(storage.SortDescending) {
		return storage.SortDescending
	}
	return storage.SortAscending
}
