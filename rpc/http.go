package rpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pactnet/core/events"
	"pactnet/native/agreement"
	"pactnet/native/escrow"
	"pactnet/native/oracle"
	"pactnet/native/registry"
	"pactnet/native/report"
	"pactnet/native/token"
	"pactnet/observability/metrics"
)

// Services bundles the engines the RPC surface dispatches into.
type Services struct {
	Ledger     *token.Ledger
	Registry   *registry.Registry
	Agreements *agreement.Store
	Reports    *report.Log
	Escrows    *escrow.Engine
	Oracle     *oracle.Gateway
	Journal    *events.Journal
}

// Server exposes every ledger operation over JSON-RPC on a single POST
// endpoint. The engines themselves are not concurrency safe, so the server
// serialises all calls behind one mutex; reads share the same lock because
// list resolution walks multi-key state.
type Server struct {
	mu       sync.Mutex
	services Services
	logger   *slog.Logger
	metrics  *metrics.SettlementMetrics
}

// NewServer wires a server around the provided engines.
func NewServer(services Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		services: services,
		logger:   logger.With("component", "rpc"),
		metrics:  metrics.Settlement(),
	}
}

// Router builds the HTTP routing tree: the JSON-RPC endpoint at the root,
// liveness at /healthz and the Prometheus scrape surface at /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// requestID stamps every request with a UUID so log lines from one call can
// be correlated across handlers.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	w.Header().Set("Content-Type", "application/json")
	if status := httpStatusFor(rpcErr.Code); status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// decodeParams enforces the single-object parameter convention shared by
// every method.
func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, nil, &RPCError{Code: codeParseError, Message: "parse_error", Data: err.Error()})
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, &RPCError{Code: codeParseError, Message: "parse_error", Data: err.Error()})
		return
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		writeError(w, req.ID, &RPCError{Code: codeInvalidRequest, Message: "invalid_request"})
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, req.ID, &RPCError{Code: codeMethodNotFound, Message: "method_not_found", Data: req.Method})
		return
	}

	s.mu.Lock()
	result, rpcErr := handler(&req)
	s.mu.Unlock()

	if rpcErr != nil {
		s.metrics.RecordRejection(req.Method)
		s.logger.Info("rpc call rejected",
			"method", req.Method,
			"code", rpcErr.Code,
			"requestId", w.Header().Get("X-Request-Id"),
		)
		writeError(w, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}

type handlerFunc func(*RPCRequest) (interface{}, *RPCError)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"ledger_register":              s.handleRegister,
		"ledger_isRegistered":          s.handleIsRegistered,
		"ledger_balanceOf":             s.handleBalanceOf,
		"ledger_totalSupply":           s.handleTotalSupply,
		"ledger_transfer":              s.handleTransfer,
		"ledger_approve":               s.handleApprove,
		"ledger_allowance":             s.handleAllowance,
		"ledger_transferFrom":          s.handleTransferFrom,
		"ledger_createAgreement":       s.handleAgreementCreate,
		"ledger_getAgreement":          s.handleAgreementGet,
		"ledger_listAgreementsByParty": s.handleAgreementsByParty,
		"ledger_reportIssue":           s.handleReportFile,
		"ledger_getReport":             s.handleReportGet,
		"ledger_listReportsByReporter": s.handleReportsByReporter,
		"ledger_listReportsByReported": s.handleReportsByReported,
		"ledger_events":                s.handleEvents,

		"escrow_create":          s.handleEscrowCreate,
		"escrow_join":            s.handleEscrowJoin,
		"escrow_submitProof":     s.handleEscrowSubmitProof,
		"escrow_confirm":         s.handleEscrowConfirm,
		"escrow_dispute":         s.handleEscrowDispute,
		"escrow_proposeArbiter":  s.handleEscrowProposeArbiter,
		"escrow_approveArbiter":  s.handleEscrowApproveArbiter,
		"escrow_resolve":         s.handleEscrowResolve,
		"escrow_cancel":          s.handleEscrowCancel,
		"escrow_handleExpired":   s.handleEscrowHandleExpired,
		"escrow_get":             s.handleEscrowGet,
		"escrow_listByUser":      s.handleEscrowsByUser,
		"escrow_listByAgreement": s.handleEscrowsByAgreement,
		"escrow_isExpired":       s.handleEscrowIsExpired,

		"oracle_setAuthorization":   s.handleOracleSetAuthorization,
		"oracle_isAuthorized":       s.handleOracleIsAuthorized,
		"oracle_submitVerification": s.handleOracleSubmitVerification,
		"oracle_getVerification":    s.handleOracleGetVerification,
	}
}
