package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"live-quiz-service/internal/app"
)

const qrSize = 320

// joinQR renders a PNG QR code pointing at the join page of the game.
func (s *Server) joinQR(c *gin.Context) {
	code := app.NormalizeCode(c.Param("code"))
	if _, err := s.service.GetGameState(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	png, err := qrcode.Encode(s.joinURL(c.Request, code), qrcode.Medium, qrSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// joinURL is the link players open to join code. Without a configured public
// URL the scheme and host come from the request, honouring X-Forwarded-Proto.
func (s *Server) joinURL(r *http.Request, code string) string {
	base := strings.TrimRight(s.publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join/" + app.NormalizeCode(code)
}
