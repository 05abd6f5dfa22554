package http

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/washops/backend/internal/export"
	"github.com/example/washops/backend/internal/lifecycle"
	"github.com/example/washops/backend/internal/models"
)

type addItemRequest struct {
	ServiceID int64 `json:"service_id"`
}

type assignStaffRequest struct {
	StaffID int64 `json:"staff_id"`
}

type qcChecklistRequest struct {
	Updates []models.QCChecklistUpdate `json:"updates" binding:"required,dive"`
}

func jobFilter(c *gin.Context) (models.JobFilter, bool) {
	filter := models.JobFilter{
		Status:   models.JobStatus(c.Query("status")),
		Search:   c.Query("search"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	}
	if raw := c.Query("customer"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer"})
			return filter, false
		}
		filter.Customer = id
	}
	return filter, true
}

func (s *Server) listJobs(c *gin.Context) {
	filter, ok := jobFilter(c)
	if !ok {
		return
	}
	jobs, err := s.console.ListJobs(c.Request.Context(), currentSession(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) exportJobs(c *gin.Context) {
	filter, ok := jobFilter(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.console.ExportJobs(c.Request.Context(), currentSession(c), filter, &buf); err != nil {
		respondError(c, err)
		return
	}
	name := "jobs-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// tracker resolves :id to the session's mirror of that job, loading it on
// first use.
func (s *Server) tracker(c *gin.Context) (*lifecycle.Tracker, bool) {
	jobID, ok := int64Param(c, "id")
	if !ok {
		return nil, false
	}
	t, err := s.console.Job(c.Request.Context(), currentSession(c), jobID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return t, true
}

func (s *Server) jobState(c *gin.Context) {
	t, ok := s.tracker(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t.State())
}

func (s *Server) closeJob(c *gin.Context) {
	jobID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	s.console.CloseJob(currentSession(c).ID, jobID)
	c.Status(http.StatusNoContent)
}

func (s *Server) refreshJob(c *gin.Context) {
	t, ok := s.tracker(c)
	if !ok {
		return
	}
	if err := t.Load(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.State())
}

// jobAction runs a status or task operation against the job mirror and
// answers with the refreshed state.
func (s *Server) jobAction(c *gin.Context, run func(ctx context.Context, t *lifecycle.Tracker) error) {
	t, ok := s.tracker(c)
	if !ok {
		return
	}
	if err := run(c.Request.Context(), t); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.State())
}

func (s *Server) startJob(c *gin.Context) {
	s.jobAction(c, func(ctx context.Context, t *lifecycle.Tracker) error {
		_, err := t.Start(ctx)
		return err
	})
}

func (s *Server) sendJobToQC(c *gin.Context) {
	s.jobAction(c, func(ctx context.Context, t *lifecycle.Tracker) error {
		_, err := t.SendToQC(ctx)
		return err
	})
}

func (s *Server) completeJob(c *gin.Context) {
	var payment lifecycle.Payment
	if err := c.ShouldBindJSON(&payment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.jobAction(c, func(ctx context.Context, t *lifecycle.Tracker) error {
		_, err := t.Complete(ctx, payment)
		return err
	})
}

func (s *Server) cancelJob(c *gin.Context) {
	s.jobAction(c, func(ctx context.Context, t *lifecycle.Tracker) error {
		_, err := t.Cancel(ctx)
		return err
	})
}

func (s *Server) addJobItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.jobAction(c, func(ctx context.Context, t *lifecycle.Tracker) error {
		_, err := t.AddItem(ctx, req.ServiceID)
		return err
	})
}

func (s *Server) assignStaff(c *gin.Context) {
	itemID, ok := int64Param(c, "item")
	if !ok {
		return
	}
	var req assignStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.jobAction(c, func(ctx context.Context, t *lifecycle.Tracker) error {
		_, err := t.AssignStaff(ctx, itemID, req.StaffID)
		return err
	})
}

func (s *Server) startTask(c *gin.Context) {
	taskID, ok := int64Param(c, "task")
	if !ok {
		return
	}
	s.jobAction(c, func(ctx context.Context, t *lifecycle.Tracker) error {
		_, err := t.StartTask(ctx, taskID)
		return err
	})
}

func (s *Server) completeTask(c *gin.Context) {
	taskID, ok := int64Param(c, "task")
	if !ok {
		return
	}
	s.jobAction(c, func(ctx context.Context, t *lifecycle.Tracker) error {
		_, err := t.CompleteTask(ctx, taskID)
		return err
	})
}

func (s *Server) qcChecklist(c *gin.Context) {
	t, ok := s.tracker(c)
	if !ok {
		return
	}
	entries, err := t.QCChecklist(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (s *Server) updateQCChecklist(c *gin.Context) {
	var req qcChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, ok := s.tracker(c)
	if !ok {
		return
	}
	entries, err := t.UpdateQCChecklist(c.Request.Context(), req.Updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (s *Server) jobEvents(c *gin.Context) {
	jobID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	events, err := s.console.JobEvents(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
