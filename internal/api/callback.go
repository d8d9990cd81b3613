package api

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pokedi/edfc/internal/errors"
)

var pages = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Login successful</title></head>
<body>
<h1>Login successful</h1>
<p>{{if .Commander}}CMDR {{.Commander}} is now linked to your Discord account.{{else}}Your Frontier account is now linked.{{end}}</p>
<p>You can close this window and return to Discord.</p>
</body>
</html>`))

func init() {
	template.Must(pages.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Login failed</title></head>
<body>
<h1>Login failed</h1>
<p>{{.Message}}</p>
<p>Return to Discord and run /login to try again.</p>
</body>
</html>`))
}

// handleCallback completes the login started by /login. Any failure renders
// the error page with status 500.
func (s *Server) handleCallback(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("sessionId")

	if denied := c.Query("error"); denied != "" {
		s.logger.WarnWithContext(ctx, "authorization denied", "session_id", sessionID, "error", denied)
		c.HTML(http.StatusInternalServerError, "error", gin.H{"Message": "Authorization was denied."})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.HTML(http.StatusInternalServerError, "error", gin.H{"Message": "Missing authorization code."})
		return
	}

	result, err := s.deps.Sessions.CompleteSession(ctx, sessionID, code, c.Query("state"))
	if err != nil {
		s.logger.WarnWithContext(ctx, "login callback failed", "session_id", sessionID, "error", err)
		c.HTML(http.StatusInternalServerError, "error", gin.H{"Message": errors.UserMessage(err)})
		return
	}

	c.HTML(http.StatusOK, "success", gin.H{"Commander": result.CommanderName})
}
