package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siherrmann/factual/model"
	"github.com/siherrmann/factual/observability"
)

const (
	DefaultAddr    = ":5000"
	DefaultTimeout = 60 * time.Second
	RequestIDKey   = "X-Request-ID"
	ServiceName    = "VerificationSystem"
)

// ClaimVerifier is the part of factual.Verifier the server needs
type ClaimVerifier interface {
	Verify(ctx context.Context, claim string) (*model.VerificationResult, error)
}

// PredictRequest is the body of POST /predict
type PredictRequest struct {
	Text *string `json:"text"`
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// WithTimeout bounds the verification time of one request
func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// WithMetrics counts requests and serves the gatherer on GET /metrics
func WithMetrics(metrics *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.gatherer = gatherer
	}
}

// Server exposes a ClaimVerifier over HTTP
type Server struct {
	Router   *gin.Engine
	verifier ClaimVerifier
	timeout  time.Duration
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// NewServer creates the router with permissive CORS for browser clients
func NewServer(verifier ClaimVerifier, opts ...Option) *Server {
	s := &Server{
		verifier: verifier,
		timeout:  DefaultTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.observe(), cors.Default())

	router.GET("/", s.HandleStatus)
	router.POST("/predict", s.HandlePredict)
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.Router = router
	return s
}

// HandleStatus reports that the service is up
func (s *Server) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "running", "model": ServiceName})
}

// HandlePredict verifies the claim in the request body
func (s *Server) HandlePredict(c *gin.Context) {
	var request PredictRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Text == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'text' field"})
		return
	}

	claim := strings.TrimSpace(*request.Text)
	if claim == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	result, err := s.verifier.Verify(ctx, claim)
	if errors.Is(err, model.ErrEmptyClaim) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
		return
	} else if err != nil {
		s.log.Error("Prediction failed", slog.String("request_id", c.GetString(RequestIDKey)), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Run serves until ctx is cancelled and shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Serving", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestID reuses the client request ID or assigns a new one
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDKey)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDKey, id)
		c.Next()
	}
}

// observe logs every request and counts it per route and status code
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.ObserveRequest(route, strconv.Itoa(status))
		s.log.Debug("Handled request",
			slog.String("request_id", c.GetString(RequestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("took", time.Since(start)),
		)
	}
}
