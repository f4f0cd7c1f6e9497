// Package rpc exposes the gateway to relayers over JSON-RPC 2.0.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	coreerrors "metagate/core/errors"
	"metagate/core/metatx"
	"metagate/gateway/middleware"
	"metagate/storage/eventlog"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// RequestIDHeader carries the correlation id echoed on every response.
	RequestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRejected       = -32010
	codeReplayed       = -32011
	codeUnsupported    = -32012
)

// EventSource lists archived events.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Record, error)
}

// ServerConfig tunes a Server.
type ServerConfig struct {
	// RequireScope, when set, is the token scope needed for metatx_submit and
	// metatx_approve. Queries never require a token.
	RequireScope string
	Events       EventSource
	Logger       *slog.Logger
}

// Server dispatches JSON-RPC requests to a gateway.
type Server struct {
	gateway      *metatx.Gateway
	events       EventSource
	requireScope string
	logger       *slog.Logger
}

func NewServer(gateway *metatx.Gateway, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		gateway:      gateway,
		events:       cfg.Events,
		requireScope: strings.TrimSpace(cfg.RequireScope),
		logger:       logger,
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorData is attached to gateway failures so relayers can branch on the
// stable taxonomy code.
type ErrorData struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeGatewayError maps a gateway failure onto a JSON-RPC error carrying its
// taxonomy code.
func writeGatewayError(w http.ResponseWriter, id interface{}, err error) {
	code := coreerrors.Code(err)
	data := ErrorData{Code: code, Detail: err.Error()}
	switch {
	case errors.Is(err, coreerrors.ErrAlreadyFlipped), errors.Is(err, coreerrors.ErrSequenceNotIncreasing):
		writeError(w, http.StatusConflict, id, codeReplayed, "request already consumed", data)
	case errors.Is(err, coreerrors.ErrQueryUnsupported):
		writeError(w, http.StatusBadRequest, id, codeUnsupported, "query not supported by policy", data)
	case coreerrors.IsRejection(err):
		writeError(w, http.StatusBadRequest, id, codeRejected, "request rejected", data)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", ErrorData{Code: code})
	}
}

func writeInvalidParams(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid params", err.Error())
}

// ServeHTTP is the main request handler that routes to specific handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	s.logger.DebugContext(r.Context(), "rpc request",
		slog.String("method", req.Method),
		slog.String("request_id", requestID),
	)

	switch req.Method {
	case "metatx_submit":
		if !s.authorized(w, r, req) {
			return
		}
		s.handleSubmit(w, r, req)
	case "metatx_approve":
		if !s.authorized(w, r, req) {
			return
		}
		s.handleApprove(w, r, req)
	case "metatx_isBitmapSet":
		s.handleIsBitmapSet(w, r, req)
	case "metatx_getNonce":
		s.handleGetNonce(w, r, req)
	case "metatx_currentBucket":
		s.handleCurrentBucket(w, r, req)
	case "metatx_digest":
		s.handleDigest(w, r, req)
	case "metatx_info":
		s.handleInfo(w, r, req)
	case "metatx_stateRoot":
		s.handleStateRoot(w, r, req)
	case "metatx_recentEvents":
		s.handleRecentEvents(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method), nil)
	}
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	if s.requireScope == "" || middleware.HasScope(r.Context(), s.requireScope) {
		return true
	}
	writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or insufficient token", s.requireScope)
	return false
}
