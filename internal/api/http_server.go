package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jetsflare/internal/config"
	"jetsflare/internal/database"
	"jetsflare/internal/domain"
	"jetsflare/internal/metrics"
	"jetsflare/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the node-agent API, the admin API and the payment
// webhook on one port.
type HTTPServer struct {
	cfg      config.Config
	store    domain.Store
	accounts *service.AccountService
	payments *service.PaymentService
	gateway  domain.InvoiceGateway
	eventBus domain.EventPublisher
	backups  BackupRunner
	logger   zerolog.Logger

	server *http.Server
	auth   *Auth
}

// BackupRunner is implemented by *database.DB.
type BackupRunner interface {
	Backup(ctx context.Context, dir string) (string, error)
	PruneBackups(dir string, retentionDays int) (int, error)
}

func NewHTTPServer(
	cfg config.Config,
	store domain.Store,
	accounts *service.AccountService,
	payments *service.PaymentService,
	gw domain.InvoiceGateway,
	eventBus domain.EventPublisher,
	backups BackupRunner,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		store:    store,
		accounts: accounts,
		payments: payments,
		gateway:  gw,
		eventBus: eventBus,
		backups:  backups,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	srv.auth = NewAuth(cfg.API)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", srv.handleHealth)

	// Node agent surface.
	mux.HandleFunc("POST /api/v1/nodes/register", srv.handleNodeRegister)
	mux.HandleFunc("POST /api/v1/nodes/{id}/heartbeat", srv.handleNodeHeartbeat)
	mux.HandleFunc("GET /api/v1/nodes/{id}/clients", srv.handleNodeClients)
	mux.HandleFunc("POST /api/v1/nodes/{id}/traffic", srv.handleNodeTraffic)

	// Admin surface.
	mux.HandleFunc("GET /api/v1/nodes", srv.handleListNodes)
	mux.HandleFunc("DELETE /api/v1/nodes/{id}", srv.handleDeleteNode)
	mux.HandleFunc("POST /api/v1/users", srv.handleCreateUser)
	mux.HandleFunc("GET /api/v1/users", srv.handleListUsers)
	mux.HandleFunc("GET /api/v1/users/{id}", srv.handleGetUser)
	mux.HandleFunc("PATCH /api/v1/users/{id}", srv.handleUpdateUser)
	mux.HandleFunc("DELETE /api/v1/users/{id}", srv.handleDeleteUser)
	mux.HandleFunc("POST /api/v1/users/{id}/extend", srv.handleExtendUser)
	mux.HandleFunc("GET /api/v1/users/{id}/links", srv.handleUserLinks)
	mux.HandleFunc("GET /api/v1/settings", srv.handleGetSettings)
	mux.HandleFunc("PUT /api/v1/settings", srv.handlePutSettings)
	mux.HandleFunc("GET /api/v1/referrals/top", srv.handleTopReferrers)
	mux.HandleFunc("GET /api/v1/stats", srv.handleStats)
	mux.HandleFunc("GET /api/v1/export/users", srv.handleExportUsers)
	mux.HandleFunc("POST /api/v1/admin/backup", srv.handleBackup)

	// Authenticated by the gateway signature, not a bearer token.
	mux.HandleFunc("POST /api/v1/payments/webhook", srv.handlePaymentWebhook)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the assembled handler chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	type pinger interface {
		PingContext(ctx context.Context) error
	}
	if p, ok := s.store.(pinger); ok {
		if err := p.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.Pattern)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeStoreError maps store and service errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGatewayDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
