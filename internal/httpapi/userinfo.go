package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uitsmijter/uitsmijter/internal/engine"
)

// handleUserinfo implements GET /userinfo, per spec §6/§4.8: requires a
// valid bearer access token, returns 401 with
// WWW-Authenticate: Bearer error="invalid_token" on failure.
func (s *Server) handleUserinfo(c *gin.Context) {
	res := s.Engine.Userinfo(engine.UserinfoRequest{
		AuthorizationHeader: c.GetHeader("Authorization"),
	})

	if res.Kind == engine.ResultError {
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		c.JSON(http.StatusUnauthorized, res.Err.ToResponse())
		return
	}
	s.writeResult(c, res)
}
