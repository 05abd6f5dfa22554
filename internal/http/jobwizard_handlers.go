package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/washops/backend/internal/jobwizard"
	"github.com/example/washops/backend/internal/models"
)

type selectCarRequest struct {
	CarID int64 `json:"car_id" binding:"required"`
}

func (s *Server) startJobWizard(c *gin.Context) {
	id, w := s.console.StartJobWizard(currentSession(c))
	c.JSON(http.StatusCreated, gin.H{"id": id, "state": w.State()})
}

func (s *Server) jobWizard(c *gin.Context) (uuid.UUID, *jobwizard.Wizard, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return uuid.Nil, nil, false
	}
	w, err := s.console.JobWizard(currentSession(c).ID, id)
	if err != nil {
		respondError(c, err)
		return uuid.Nil, nil, false
	}
	return id, w, true
}

func (s *Server) jobWizardState(c *gin.Context) {
	id, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) discardJobWizard(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := s.console.DiscardJobWizard(currentSession(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) jobWizardSearch(c *gin.Context) {
	_, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	q := c.Query("q")
	results, err := w.Search(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	if results == nil {
		results = []models.Customer{}
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": results})
}

func (s *Server) jobWizardSelectCustomer(c *gin.Context) {
	id, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if customer.ID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer id is required"})
		return
	}
	if err := w.SelectCustomer(customer); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

// jobWizardNext advances and loads the service catalog on entering the
// services step.
func (s *Server) jobWizardNext(c *gin.Context) {
	id, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := w.NextStep(ctx); err != nil {
		respondError(c, err)
		return
	}
	if w.State().Step == jobwizard.StepServices {
		if err := w.LoadServices(ctx); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) jobWizardPrevious(c *gin.Context) {
	id, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	moved := w.PreviousStep()
	c.JSON(http.StatusOK, gin.H{"id": id, "moved": moved, "state": w.State()})
}

func (s *Server) jobWizardSelectCar(c *gin.Context) {
	id, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	var req selectCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := w.SelectCar(req.CarID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) jobWizardLoadServices(c *gin.Context) {
	id, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	if err := w.LoadServices(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) jobWizardToggleService(c *gin.Context) {
	id, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	serviceID, ok := int64Param(c, "service")
	if !ok {
		return
	}
	selected, err := w.ToggleService(serviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "selected": selected, "state": w.State()})
}

func (s *Server) jobWizardSubmit(c *gin.Context) {
	id, w, ok := s.jobWizard(c)
	if !ok {
		return
	}
	outcome, err := w.Submit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "result": outcome, "state": w.State()})
}
