// Package admin serves the operator HTTP surface: health, Prometheus metrics,
// the live client list and the shutdown trigger.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/andy6609/line-relay/internal/chat"
	"github.com/andy6609/line-relay/internal/log"
)

// ClientLister reports the currently registered clients.
type ClientLister interface {
	Clients() []chat.ClientInfo
}

// ErrorResponse is the JSON body of failed admin requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

type clientsResponse struct {
	Count   int               `json:"count"`
	Clients []chat.ClientInfo `json:"clients"`
}

type handlers struct {
	clients  ClientLister
	shutdown func() bool
	log      *zerolog.Logger
}

// NewServer builds the admin HTTP server. shutdown is called for
// POST /admin/shutdown and must report whether this call started the shutdown.
func NewServer(addr string, clients ClientLister, shutdown func() bool, logger *zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(clients, shutdown, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func NewRouter(clients ClientLister, shutdown func() bool, logger *zerolog.Logger) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	gin.SetMode(gin.ReleaseMode)

	h := &handlers{clients: clients, shutdown: shutdown, log: logger}

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g := r.Group("/admin")
	g.GET("/clients", h.listClients)
	g.POST("/shutdown", h.requestShutdown)

	return r
}

func (h *handlers) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *handlers) listClients(c *gin.Context) {
	list := h.clients.Clients()
	c.JSON(http.StatusOK, clientsResponse{Count: len(list), Clients: list})
}

func (h *handlers) requestShutdown(c *gin.Context) {
	if h.shutdown == nil || !h.shutdown() {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "shutdown already requested"})
		return
	}
	h.log.Warn().Str("remote", c.ClientIP()).Msg("shutdown requested by administrator")
	c.JSON(http.StatusAccepted, gin.H{"status": "shutting down"})
}

// LoggerMiddleware logs each admin request.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("admin request")
	}
}
