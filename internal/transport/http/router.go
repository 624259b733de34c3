package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/logging"
	"live-quiz-service/internal/metrics"
)

// Options configures NewRouter.
type Options struct {
	// PublicURL is the externally visible base URL used in join links. When
	// empty it is derived from the request.
	PublicURL string
	Logger    *logrus.Entry
	Metrics   *metrics.Metrics
}

// Server holds the HTTP handlers of the game API.
type Server struct {
	service   *app.GameService
	tokens    *HostTokens
	log       *logrus.Entry
	metrics   *metrics.Metrics
	publicURL string
}

// NewRouter wires the REST API, the websocket endpoint, health and metrics.
func NewRouter(service *app.GameService, tokens *HostTokens, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{
		service:   service,
		tokens:    tokens,
		log:       log,
		metrics:   opts.Metrics,
		publicURL: opts.PublicURL,
	}
	ws := NewWSHandler(service, tokens, log)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), instrument(opts.Metrics))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWS(c.Writer, c.Request)
	})

	api := router.Group("/api")
	{
		api.POST("/games", s.createGame)

		games := api.Group("/games/:code")
		{
			games.GET("/state", s.pollState)
			games.GET("/leaderboard", s.leaderboard)
			games.GET("/qr.png", s.joinQR)
			games.GET("/players", s.listPlayers)
			games.POST("/players", s.joinGame)
			games.POST("/players/:playerId/leave", s.leaveGame)
			games.GET("/players/:playerId/resume", s.resume)
			games.POST("/answers", s.submitAnswer)
		}

		host := api.Group("/games/:code")
		host.Use(RequireHost(tokens))
		{
			host.POST("/start", s.startGame)
			host.POST("/reveal", s.revealQuestion)
			host.POST("/advance", s.advanceQuestion)
			host.POST("/end", s.endGame)
			host.DELETE("", s.deleteGame)
			host.DELETE("/players/:playerId", s.kickPlayer)
		}
	}
	return router
}
