package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/washops/backend/internal/appstate"
	"github.com/example/washops/backend/internal/backend"
	"github.com/example/washops/backend/internal/jobwizard"
	"github.com/example/washops/backend/internal/lifecycle"
	"github.com/example/washops/backend/internal/models"
	"github.com/example/washops/backend/internal/onboarding"
	"github.com/example/washops/backend/internal/service"
	"github.com/example/washops/backend/internal/validation"
)

// SessionHeader carries the console session id on every authenticated request.
const SessionHeader = "X-Session-ID"

const sessionKey = "session"

// Server wraps the gin engine and collaborators needed to handle API requests.
type Server struct {
	Engine  *gin.Engine
	console *service.ConsoleService
}

// NewServer constructs a new API server and registers routes.
func NewServer(console *service.ConsoleService) *Server {
	router := gin.Default()
	srv := &Server{Engine: router, console: console}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	api := s.Engine.Group("/api")
	api.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api.POST("/session", s.login)

	authed := api.Group("", s.requireSession)
	authed.GET("/session", s.currentSession)
	authed.PATCH("/session/notifications", s.setNotifications)
	authed.DELETE("/session", s.logout)

	ob := authed.Group("/onboarding")
	ob.POST("", s.startOnboarding)
	ob.GET("/:id", s.onboardingState)
	ob.DELETE("/:id", s.discardOnboarding)
	ob.PUT("/:id/steps/:step", s.setOnboardingForm)
	ob.POST("/:id/next", s.onboardingNext)
	ob.POST("/:id/previous", s.onboardingPrevious)
	ob.POST("/:id/goto", s.onboardingGoTo)
	ob.POST("/:id/make", s.onboardingSelectMake)
	ob.POST("/:id/cars", s.onboardingAddCar)
	ob.PUT("/:id/cars/:row", s.onboardingUpdateCar)
	ob.POST("/:id/cars/:row/make", s.onboardingSelectRowMake)
	ob.DELETE("/:id/cars/:row", s.onboardingRemoveCar)
	ob.POST("/:id/submit", s.onboardingSubmit)

	jw := authed.Group("/job-wizards")
	jw.POST("", s.startJobWizard)
	jw.GET("/:id", s.jobWizardState)
	jw.DELETE("/:id", s.discardJobWizard)
	jw.GET("/:id/search", s.jobWizardSearch)
	jw.POST("/:id/customer", s.jobWizardSelectCustomer)
	jw.POST("/:id/next", s.jobWizardNext)
	jw.POST("/:id/previous", s.jobWizardPrevious)
	jw.POST("/:id/car", s.jobWizardSelectCar)
	jw.POST("/:id/services", s.jobWizardLoadServices)
	jw.POST("/:id/services/:service/toggle", s.jobWizardToggleService)
	jw.POST("/:id/submit", s.jobWizardSubmit)

	jobs := authed.Group("/jobs")
	jobs.GET("", s.listJobs)
	jobs.GET("/export", s.exportJobs)
	jobs.GET("/:id", s.jobState)
	jobs.DELETE("/:id", s.closeJob)
	jobs.POST("/:id/refresh", s.refreshJob)
	jobs.POST("/:id/start", s.startJob)
	jobs.POST("/:id/send-to-qc", s.sendJobToQC)
	jobs.POST("/:id/complete", s.completeJob)
	jobs.POST("/:id/cancel", s.cancelJob)
	jobs.POST("/:id/items", s.addJobItem)
	jobs.POST("/:id/items/:item/tasks", s.assignStaff)
	jobs.POST("/:id/tasks/:task/start", s.startTask)
	jobs.POST("/:id/tasks/:task/complete", s.completeTask)
	jobs.GET("/:id/qc-checklist", s.qcChecklist)
	jobs.POST("/:id/qc-checklist", s.updateQCChecklist)
	jobs.GET("/:id/events", s.jobEvents)

	ref := authed.Group("/reference")
	ref.GET("/car-makes", s.carMakes)
	ref.GET("/car-makes/:id/models", s.carModels)
	ref.GET("/services", s.services)
	ref.GET("/staff", s.staff)
}

func (s *Server) requireSession(c *gin.Context) {
	id, err := uuid.Parse(c.GetHeader(SessionHeader))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + SessionHeader})
		return
	}
	session, err := s.console.Session(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, appstate.ErrNoSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		c.Abort()
		return
	}
	c.Set(sessionKey, session)
	c.Request = c.Request.WithContext(appstate.WithSession(c.Request.Context(), session))
	c.Next()
}

func currentSession(c *gin.Context) *models.ConsoleSession {
	return c.MustGet(sessionKey).(*models.ConsoleSession)
}

var errorStatus = []struct {
	err  error
	code int
}{
	{validation.ErrInvalid, http.StatusUnprocessableEntity},
	{lifecycle.ErrPaymentMethodRequired, http.StatusUnprocessableEntity},
	{lifecycle.ErrTransactionReferenceRequired, http.StatusUnprocessableEntity},
	{lifecycle.ErrInvalidCompletionTarget, http.StatusUnprocessableEntity},
	{lifecycle.ErrStaffRequired, http.StatusUnprocessableEntity},
	{lifecycle.ErrServiceRequired, http.StatusUnprocessableEntity},
	{jobwizard.ErrNoCustomer, http.StatusUnprocessableEntity},
	{jobwizard.ErrNoCar, http.StatusUnprocessableEntity},
	{jobwizard.ErrNoServices, http.StatusUnprocessableEntity},

	{onboarding.ErrInFlight, http.StatusConflict},
	{onboarding.ErrAlreadySubmitted, http.StatusConflict},
	{onboarding.ErrStepLocked, http.StatusConflict},
	{onboarding.ErrAtLastStep, http.StatusConflict},
	{onboarding.ErrAccountTypeLocked, http.StatusConflict},
	{onboarding.ErrLastRow, http.StatusConflict},
	{jobwizard.ErrInFlight, http.StatusConflict},
	{jobwizard.ErrAlreadySubmitted, http.StatusConflict},
	{jobwizard.ErrWrongStep, http.StatusConflict},
	{jobwizard.ErrAtLastStep, http.StatusConflict},
	{jobwizard.ErrSuperseded, http.StatusConflict},
	{lifecycle.ErrInFlight, http.StatusConflict},
	{lifecycle.ErrTransitionNotAllowed, http.StatusConflict},
	{lifecycle.ErrJobClosed, http.StatusConflict},
	{lifecycle.ErrNotInQC, http.StatusConflict},
	{lifecycle.ErrStaleResponse, http.StatusConflict},
	{lifecycle.ErrNotLoaded, http.StatusConflict},

	{lifecycle.ErrCancellationDisabled, http.StatusForbidden},

	{appstate.ErrNoSession, http.StatusNotFound},
	{service.ErrWizardNotFound, http.StatusNotFound},
	{onboarding.ErrUnknownStep, http.StatusNotFound},
	{onboarding.ErrUnknownRow, http.StatusNotFound},
	{jobwizard.ErrUnknownCar, http.StatusNotFound},
	{jobwizard.ErrUnknownService, http.StatusNotFound},
	{lifecycle.ErrUnknownItem, http.StatusNotFound},
	{lifecycle.ErrUnknownTask, http.StatusNotFound},

	{appstate.ErrInvalidLogin, http.StatusBadRequest},
}

// respondError writes err as {"error": ...} with a status derived from its kind.
func respondError(c *gin.Context, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "violations": verr.Violations})
		return
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		code := http.StatusBadGateway
		if apiErr.NotFound() {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{"error": backend.Detail(err, apiErr.Error()), "backendStatus": apiErr.StatusCode})
		return
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.code, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
