package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/uitsmijter/uitsmijter/internal/engine"
)

// handleLogin implements POST /login, per spec §6: form fields
// username, password, location, mode.
func (s *Server) handleLogin(c *gin.Context) {
	req := engine.LoginRequest{
		Location:          c.PostForm("location"),
		Username:          c.PostForm("username"),
		Password:          c.PostForm("password"),
		Mode:              c.PostForm("mode"),
		ResponsibleDomain: s.responsibleDomain(c),
	}

	res := s.Engine.Login(c.Request.Context(), req)
	s.writeResult(c, res)
}
