package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetLocation serves the location fetched at startup.
func (s *Server) GetLocation(c *gin.Context) {
	location := s.location.Get()
	if location == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	if len(location.Raw) > 0 {
		c.JSON(http.StatusOK, gin.H{"location": location.Raw})
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}
