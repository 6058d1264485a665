package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"demand_forecast/internal/config"
	"demand_forecast/internal/metrics"
	"demand_forecast/internal/session"
	"demand_forecast/internal/ws"
)

// Server exposes a session over HTTP and WebSocket.
type Server struct {
	session *session.Session
	hub     *ws.Hub
	router  *gin.Engine
}

// New builds the router. hub receives the broadcasts of a ws.Bridge that
// should be part of the session's sink.
func New(s *session.Session, hub *ws.Hub, cfg config.Server) *Server {
	srv := &Server{session: s, hub: hub}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(setupCORS(cfg.CORSOrigins))

	var auth *Authenticator
	if cfg.JWTSecret != "" {
		auth = NewAuthenticator(cfg.JWTSecret)
	}

	router.GET("/health", srv.health)
	router.GET("/records", srv.listRecords)
	router.GET("/edits", srv.listEdits)
	router.GET("/reports/:target", srv.getReport)
	router.POST("/predict/:target", srv.predict)
	router.GET("/models/:target", srv.exportModel)

	write := router.Group("/", requireToken(auth))
	write.POST("/records", srv.insertRecord)
	write.PATCH("/records/:date", srv.editRecord)
	write.POST("/sync/pull", srv.pull)
	write.POST("/sync/push", srv.push)
	write.POST("/train/:target", srv.train)

	router.GET("/ws", gin.WrapH(ws.NewHandler(hub, liveSource{s})))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	srv.router = router
	return srv
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Printf("shutting down server")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func setupCORS(origins []string) gin.HandlerFunc {
	methods := []string{"GET", "POST", "PATCH", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Authorization"}

	if len(origins) == 0 || (len(origins) == 1 && strings.TrimSpace(origins[0]) == "*") {
		return cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    methods,
			AllowHeaders:    headers,
			MaxAge:          12 * time.Hour,
		})
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     methods,
		AllowHeaders:     headers,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func (s *Server) health(c *gin.Context) {
	st := s.session.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":        "UP",
		"rows":          st.Rows,
		"pending_edits": st.PendingEdits,
		"ws_clients":    s.hub.ClientCount(),
	})
}
