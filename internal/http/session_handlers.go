package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/washops/backend/internal/appstate"
)

func (s *Server) login(c *gin.Context) {
	var req appstate.Login
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := s.console.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session":             session,
		"cancellationEnabled": s.console.CancellationEnabled(),
	})
}

func (s *Server) currentSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session":             currentSession(c),
		"cancellationEnabled": s.console.CancellationEnabled(),
	})
}

type notificationsRequest struct {
	Count *int `json:"count" binding:"required,min=0"`
}

func (s *Server) setNotifications(c *gin.Context) {
	var req notificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session := currentSession(c)
	if err := s.console.SetUnreadNotifications(c.Request.Context(), session.ID, *req.Count); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadNotifications": *req.Count})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.console.Logout(c.Request.Context(), currentSession(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
