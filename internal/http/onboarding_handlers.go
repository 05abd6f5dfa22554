package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/washops/backend/internal/onboarding"
)

type startOnboardingRequest struct {
	Mode       string `json:"mode" binding:"required"`
	CustomerID int64  `json:"customer_id"`
}

type makeRequest struct {
	MakeID int64 `json:"make_id" binding:"required"`
}

type gotoRequest struct {
	Step *int `json:"step" binding:"required,min=0"`
}

func (s *Server) startOnboarding(c *gin.Context) {
	var req startOnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, w, err := s.console.StartOnboarding(c.Request.Context(), currentSession(c), req.Mode, req.CustomerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "state": w.State()})
}

// onboardingWizard resolves :id to a wizard of the current session and
// writes the error response when it cannot.
func (s *Server) onboardingWizard(c *gin.Context) (uuid.UUID, *onboarding.Wizard, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return uuid.Nil, nil, false
	}
	w, err := s.console.Onboarding(currentSession(c).ID, id)
	if err != nil {
		respondError(c, err)
		return uuid.Nil, nil, false
	}
	return id, w, true
}

func (s *Server) onboardingState(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) discardOnboarding(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := s.console.DiscardOnboarding(currentSession(c).ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setOnboardingForm(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	violations, err := w.SetForm(onboarding.StepKey(c.Param("step")), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "violations": violations, "state": w.State()})
}

func (s *Server) onboardingNext(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	if err := w.NextStep(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) onboardingPrevious(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	moved := w.PreviousStep()
	c.JSON(http.StatusOK, gin.H{"id": id, "moved": moved, "state": w.State()})
}

func (s *Server) onboardingGoTo(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	var req gotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := w.GoToStep(*req.Step); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) onboardingSelectMake(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	var req makeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := w.SelectMake(c.Request.Context(), req.MakeID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) onboardingAddCar(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	row, err := w.AddCar()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "row": row, "state": w.State()})
}

func (s *Server) onboardingUpdateCar(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	row, ok := uuidParam(c, "row")
	if !ok {
		return
	}
	var car onboarding.CarDraft
	if err := c.ShouldBindJSON(&car); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	violations, err := w.UpdateCar(row, car)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "violations": violations, "state": w.State()})
}

func (s *Server) onboardingSelectRowMake(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	row, ok := uuidParam(c, "row")
	if !ok {
		return
	}
	var req makeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := w.SelectRowMake(c.Request.Context(), row, req.MakeID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "models": w.RowModels(row), "state": w.State()})
}

func (s *Server) onboardingRemoveCar(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	row, ok := uuidParam(c, "row")
	if !ok {
		return
	}
	if err := w.RemoveCar(row); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "state": w.State()})
}

func (s *Server) onboardingSubmit(c *gin.Context) {
	id, w, ok := s.onboardingWizard(c)
	if !ok {
		return
	}
	outcome, err := w.Submit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "result": outcome, "state": w.State()})
}
