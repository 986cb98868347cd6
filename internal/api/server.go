// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/qr-hub/internal/auth"
	"github.com/qr-hub/internal/logging"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/service"
)

// Service interfaces for dependency injection and testing

// QRServiceInterface defines the owner-scoped QR record operations
type QRServiceInterface interface {
	Create(ctx context.Context, in service.CreateInput) (*service.CreateResult, error)
	List(ctx context.Context, ownerID string) ([]*models.QRRecord, error)
	Update(ctx context.Context, id, ownerID string, in service.UpdateInput) (*models.QRRecord, error)
	Delete(ctx context.Context, id, ownerID string) error
	RenderImage(ctx context.Context, slug string) ([]byte, error)
}

// ResolverInterface defines the public scan path
type ResolverInterface interface {
	Resolve(ctx context.Context, slug string) (*service.Resolution, error)
}

// EventServiceInterface defines event recording and analytics
type EventServiceInterface interface {
	RecordEvent(ctx context.Context, slug string, in service.EventInput)
	RecordForRecord(ctx context.Context, recordID string, in service.EventInput)
	Analytics(ctx context.Context, slug, ownerID string) (*service.Analytics, error)
}

// PlanServiceInterface defines plan reads
type PlanServiceInterface interface {
	View(ctx context.Context, userID string) (*service.PlanView, error)
}

// AuthServiceInterface defines account and token operations
type AuthServiceInterface interface {
	Signup(ctx context.Context, email, password string) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Authenticate(token string) (*auth.Claims, error)
	CurrentUser(ctx context.Context, claims *auth.Claims) (*models.User, error)
}

// CheckoutServiceInterface defines Stripe checkout and webhook handling
type CheckoutServiceInterface interface {
	Configured() bool
	CreateCheckout(ctx context.Context, in service.CheckoutInput) (*service.CheckoutSession, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// StatusServiceInterface defines the feature-flag report
type StatusServiceInterface interface {
	Status(ctx context.Context) *service.Status
}

// Services bundles the server's dependencies
type Services struct {
	QR       QRServiceInterface
	Resolver ResolverInterface
	Events   EventServiceInterface
	Plans    PlanServiceInterface
	Auth     AuthServiceInterface
	Checkout CheckoutServiceInterface
	Status   StatusServiceInterface
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	validate   *validator.Validate

	qr       QRServiceInterface
	resolver ResolverInterface
	events   EventServiceInterface
	plans    PlanServiceInterface
	auth     AuthServiceInterface
	checkout CheckoutServiceInterface
	status   StatusServiceInterface

	config *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// RequestsPerSecond and Burst configure the per-client limiter. Zero disables it.
	RequestsPerSecond float64
	Burst             int
	// NFTContractAddress and ChainID are echoed by the NFT and marketplace endpoints
	NFTContractAddress string
	ChainID            int64
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		validate: newValidator(),
		qr:       services.QR,
		resolver: services.Resolver,
		events:   services.Events,
		plans:    services.Plans,
		auth:     services.Auth,
		checkout: services.Checkout,
		status:   services.Status,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Order matters: the logger must run first so later layers log with the request id
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	s.setupRoutes()

	s.handler = CORSMiddleware(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Public scan entry printed into QR images
	s.router.HandleFunc("/q/{slug}", s.handleScan).Methods(http.MethodGet)

	// Subrouters do not inherit the root's fallback handlers
	api := s.router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(handleNotFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	// Auth endpoints
	api.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", s.optionalAuth(s.handleSession)).Methods(http.MethodGet)

	// QR endpoints
	api.HandleFunc("/qr", s.requireAuth(s.handleListQR)).Methods(http.MethodGet)
	api.HandleFunc("/qr", s.requireAuth(s.handleCreateQR)).Methods(http.MethodPost)
	api.HandleFunc("/qr/{slug}", s.handleResolveQR).Methods(http.MethodGet)
	api.HandleFunc("/qr/{id}", s.requireAuth(s.handleUpdateQR)).Methods(http.MethodPut)
	api.HandleFunc("/qr/{id}", s.requireAuth(s.handleDeleteQR)).Methods(http.MethodDelete)
	api.HandleFunc("/qr/{slug}/analytics", s.requireAuth(s.handleAnalytics)).Methods(http.MethodGet)
	api.HandleFunc("/qr/{slug}/event", s.handleRecordEvent).Methods(http.MethodPost)
	api.HandleFunc("/qr/{slug}/image", s.handleQRImage).Methods(http.MethodGet)

	// Plan endpoints
	api.HandleFunc("/plans", s.handlePlans).Methods(http.MethodGet)
	api.HandleFunc("/user/plan", s.requireAuth(s.handleUserPlan)).Methods(http.MethodGet)

	// Stripe endpoints
	api.HandleFunc("/stripe/checkout", s.handleCheckout).Methods(http.MethodPost)
	api.HandleFunc("/stripe/webhook", s.handleStripeWebhook).Methods(http.MethodPost)

	// Web3 mock detail endpoints
	api.HandleFunc("/nft/{id}", s.handleNFT).Methods(http.MethodGet)
	api.HandleFunc("/marketplace/{id}", s.handleMarketplaceListing).Methods(http.MethodGet)
}

// Handler returns the root handler, CORS included
func (s *Server) Handler() http.Handler {
	return s.handler
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "qr-hub",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
