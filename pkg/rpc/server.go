// Package rpc implements the JSON-RPC 2.0 server of the lockup node.
//
// The server exposes account state in the Solana wire format, adds
// lockup-specific queries on top of it and accepts signed transactions.
//
// Supported methods:
//   - Account: getAccountInfo, getBalance, getMultipleAccounts, getProgramAccounts, getTokenAccountBalance
//   - Lockup: getLockup, getLockupsByAuthority, getEscrowAddresses
//   - Transaction: getLatestHash, sendTransaction, simulateTransaction, getSignatureStatuses
//   - Journal: getJournalEntry, getJournalInfo
//   - Node: getHealth, getVersion, getClock, getAccountsHash, getMinimumBalanceForRentExemption
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/accounts"
	"github.com/fortiblox/x1-lockup/pkg/journal"
	"github.com/fortiblox/x1-lockup/pkg/runtime"
	"github.com/fortiblox/x1-lockup/pkg/svm/programs/lockup"
)

// Config holds RPC server configuration.
type Config struct {
	// Addr is the listen address (host:port).
	Addr string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// MaxRequestSize is the maximum allowed request body size in bytes.
	MaxRequestSize int64

	// EnableCORS enables CORS headers for browser access.
	EnableCORS bool

	// AllowedOrigins specifies allowed CORS origins (empty means all).
	AllowedOrigins []string

	// LogRequests enables request logging.
	LogRequests bool

	// LockupProgramID is the address the lockup program is deployed at.
	LockupProgramID types.Pubkey
}

// DefaultConfig returns a default RPC server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8899",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxRequestSize:  50 * 1024, // 50KB
		EnableCORS:      true,
		LogRequests:     false,
		LockupProgramID: lockup.ProgramID,
	}
}

// Server is the JSON-RPC 2.0 server.
type Server struct {
	config Config
	log    *logrus.Entry

	// Dependencies
	runtime    *runtime.Runtime
	accountsDB accounts.DB
	journal    *journal.Journal

	healthy  bool
	healthMu sync.RWMutex

	// HTTP server
	echo   *echo.Echo
	server *http.Server

	// Method handlers
	handlers map[string]handlerFunc

	// Lifecycle
	mu      sync.RWMutex
	running bool
}

// handlerFunc is a JSON-RPC method handler.
type handlerFunc func(params json.RawMessage) (interface{}, *RPCError)

// New creates a new RPC server reading the runtime's accounts. jnl may be
// nil, in which case the journal methods report that history is not
// available.
func New(config Config, rt *runtime.Runtime, jnl *journal.Journal) *Server {
	if config.LockupProgramID.IsZero() {
		config.LockupProgramID = lockup.ProgramID
	}

	s := &Server{
		config:     config,
		log:        logrus.StandardLogger().WithField("type", "rpc"),
		runtime:    rt,
		accountsDB: rt.Accounts(),
		journal:    jnl,
		healthy:    true,
		handlers:   make(map[string]handlerFunc),
	}

	s.registerHandlers()
	s.echo = s.newRouter()

	return s
}

// registerHandlers registers all RPC method handlers.
func (s *Server) registerHandlers() {
	// Account methods
	s.handlers["getAccountInfo"] = s.getAccountInfo
	s.handlers["getBalance"] = s.getBalance
	s.handlers["getMultipleAccounts"] = s.getMultipleAccounts
	s.handlers["getProgramAccounts"] = s.getProgramAccounts
	s.handlers["getTokenAccountBalance"] = s.getTokenAccountBalance

	// Lockup methods
	s.handlers["getLockup"] = s.getLockup
	s.handlers["getLockupsByAuthority"] = s.getLockupsByAuthority
	s.handlers["getEscrowAddresses"] = s.getEscrowAddresses

	// Transaction methods
	s.handlers["getLatestHash"] = s.getLatestHash
	s.handlers["sendTransaction"] = s.sendTransaction
	s.handlers["simulateTransaction"] = s.simulateTransaction
	s.handlers["getSignatureStatuses"] = s.getSignatureStatuses

	// Journal methods
	s.handlers["getJournalEntry"] = s.getJournalEntry
	s.handlers["getJournalInfo"] = s.getJournalInfo

	// Node methods
	s.handlers["getHealth"] = s.getHealth
	s.handlers["getVersion"] = s.getVersion
	s.handlers["getClock"] = s.getClock
	s.handlers["getAccountsHash"] = s.getAccountsHash
	s.handlers["getMinimumBalanceForRentExemption"] = s.getMinimumBalanceForRentExemption
}

func (s *Server) newRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	if s.config.LogRequests {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:    true,
			LogURI:       true,
			LogStatus:    true,
			LogLatency:   true,
			LogRequestID: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				s.log.WithFields(logrus.Fields{
					"method":     v.Method,
					"uri":        v.URI,
					"status":     v.Status,
					"latency":    v.Latency,
					"request_id": v.RequestID,
				}).Debug("handled http request")
				return nil
			},
		}))
	}

	if s.config.EnableCORS {
		origins := s.config.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "solana-client"},
			MaxAge:       3600,
		}))
	}

	e.POST("/", s.handleRPC)
	e.GET("/health", s.handleHealth)

	return e
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the RPC server and blocks until it is stopped or ctx is
// done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.echo,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	server := s.server
	s.mu.Unlock()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", s.config.Addr).Info("rpc server listening")

	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the RPC server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// SetHealthy sets the server health status.
func (s *Server) SetHealthy(healthy bool) {
	s.healthMu.Lock()
	s.healthy = healthy
	s.healthMu.Unlock()
}

// IsHealthy returns the current health status.
func (s *Server) IsHealthy() bool {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.healthy
}

// handleHealth serves the plain HTTP health check.
func (s *Server) handleHealth(c echo.Context) error {
	if !s.IsHealthy() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// handleRPC handles incoming JSON-RPC requests.
func (s *Server) handleRPC(c echo.Context) error {
	r := c.Request()

	contentType := r.Header.Get(echo.HeaderContentType)
	if contentType != "" && !strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		return c.JSON(http.StatusOK, errorResponse(nil, ErrInvalidRequest))
	}

	// Read request body with size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize))
	if err != nil {
		return c.JSON(http.StatusOK, errorResponse(nil, ErrParseError))
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		return s.handleBatchRequest(c, body)
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return c.JSON(http.StatusOK, errorResponse(nil, ErrParseError))
	}

	return c.JSON(http.StatusOK, s.call(c, req))
}

// handleBatchRequest handles batch JSON-RPC requests.
func (s *Server) handleBatchRequest(c echo.Context, body []byte) error {
	var requests []Request
	if err := json.Unmarshal(body, &requests); err != nil {
		return c.JSON(http.StatusOK, errorResponse(nil, ErrParseError))
	}

	if len(requests) == 0 {
		return c.JSON(http.StatusOK, errorResponse(nil, ErrInvalidRequest))
	}

	responses := make([]Response, len(requests))
	for i, req := range requests {
		responses[i] = s.call(c, req)
	}

	return c.JSON(http.StatusOK, responses)
}

// call validates and dispatches a single request.
func (s *Server) call(c echo.Context, req Request) Response {
	if req.JSONRPC != JSONRPCVersion {
		return errorResponse(req.ID, ErrInvalidRequest)
	}

	if s.config.LogRequests {
		s.log.WithFields(logrus.Fields{
			"method":     req.Method,
			"id":         req.ID,
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		}).Debug("rpc request")
	}

	result, rpcErr := s.dispatch(req.Method, req.Params)
	if rpcErr != nil {
		if rpcErr.Code == InternalError {
			s.log.WithError(rpcErr).WithField("method", req.Method).Warn("rpc method failed")
		}
		return errorResponse(req.ID, rpcErr)
	}

	return Response{
		JSONRPC: JSONRPCVersion,
		ID:      req.ID,
		Result:  result,
	}
}

// dispatch routes RPC methods to their handlers.
func (s *Server) dispatch(method string, params json.RawMessage) (interface{}, *RPCError) {
	handler, ok := s.handlers[method]
	if !ok {
		return nil, NewRPCError(MethodNotFound, fmt.Sprintf("Method not found: %s", method))
	}

	return handler(params)
}

func errorResponse(id interface{}, err *RPCError) Response {
	return Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   err,
	}
}
