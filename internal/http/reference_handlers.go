package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) carMakes(c *gin.Context) {
	makes, err := s.console.CarMakes(c.Request.Context(), currentSession(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, makes)
}

func (s *Server) carModels(c *gin.Context) {
	makeID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	list, err := s.console.CarModels(c.Request.Context(), currentSession(c), makeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) services(c *gin.Context) {
	list, err := s.console.ActiveServices(c.Request.Context(), currentSession(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) staff(c *gin.Context) {
	list, err := s.console.ActiveStaff(c.Request.Context(), currentSession(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
