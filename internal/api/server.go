package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"Intent-Chain/internal/amount"
	"Intent-Chain/internal/engine"
	xerrors "Intent-Chain/internal/errors"
	"Intent-Chain/internal/gov"
	"Intent-Chain/internal/intent"
	"Intent-Chain/internal/observability/metrics"

	"github.com/ethereum/go-ethereum/common"
)

// Server 负责暴露 REST 接口，供外部驱动意图引擎。
type Server struct {
	addr     string
	engine   *engine.Engine
	govToken string
}

// NewServer 构造 API 服务实例。govToken 为空时治理接口全部拒绝。
func NewServer(addr string, eng *engine.Engine, govToken string) *Server {
	return &Server{addr: addr, engine: eng, govToken: govToken}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 构建完整的路由表，治理路径套上令牌校验。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/preview", observe("preview", http.HandlerFunc(s.handlePreview)))
	mux.Handle("/api/v1/execute", observe("execute", http.HandlerFunc(s.handleExecute)))
	mux.Handle("/api/v1/describe", observe("describe", http.HandlerFunc(s.handleDescribe)))
	mux.Handle("/api/v1/verify", observe("verify", http.HandlerFunc(s.handleVerify)))
	mux.Handle("/api/v1/balance", observe("balance", http.HandlerFunc(s.handleBalance)))
	mux.Handle("/api/v1/supply", observe("supply", http.HandlerFunc(s.handleSupply)))
	mux.Handle("/api/v1/resolve", observe("resolve", http.HandlerFunc(s.handleResolve)))
	mux.Handle("/api/v1/governance/aliases", gov.Middleware(s.govToken, observe("governance_aliases", http.HandlerFunc(s.handleRegisterAlias))))
	mux.Handle("/api/v1/governance/routes", gov.Middleware(s.govToken, observe("governance_routes", http.HandlerFunc(s.handleRegisterRoute))))
	mux.Handle("/api/v1/governance/names", gov.Middleware(s.govToken, observe("governance_names", http.HandlerFunc(s.handleRegisterName))))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

type previewRequest struct {
	// Requester 可留空，此时载荷中的收款人字段按零地址渲染。
	Requester string `json:"requester,omitempty"`
	Text      string `json:"text"`
}

type previewResponse struct {
	RequestID string         `json:"request_id"`
	Action    string         `json:"action"`
	Summary   string         `json:"summary,omitempty"`
	Payload   string         `json:"payload,omitempty"`
	To        string         `json:"to,omitempty"`
	Asset     string         `json:"asset,omitempty"`
	Amount    string         `json:"amount,omitempty"`
	AssetIn   string         `json:"asset_in,omitempty"`
	AssetOut  string         `json:"asset_out,omitempty"`
	AmountIn  string         `json:"amount_in,omitempty"`
	MinAmount string         `json:"min_amount,omitempty"`
	Route     *routeResponse `json:"route,omitempty"`
}

type routeResponse struct {
	Pool       string `json:"pool"`
	Fee        uint32 `json:"fee"`
	ZeroForOne bool   `json:"zero_for_one"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	var requester common.Address
	if req.Requester != "" {
		var err error
		requester, err = amount.ParseAddress(req.Requester)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	preview, err := s.engine.Preview(r.Context(), requester, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := previewResponse{
		RequestID: preview.RequestID,
		Action:    preview.Action.String(),
		Summary:   preview.Summary,
		Payload:   amount.BytesHex(preview.Payload),
	}
	switch preview.Action {
	case intent.ActionSend:
		resp.To = preview.To.Hex()
		resp.Asset = preview.Asset.Hex()
		resp.Amount = amount.DecimalString(preview.Amount)
	case intent.ActionSwap:
		resp.AssetIn = preview.AssetIn.Hex()
		resp.AssetOut = preview.AssetOut.Hex()
		resp.AmountIn = amount.DecimalString(preview.AmountIn)
		resp.MinAmount = amount.DecimalString(preview.MinAmount)
		if preview.Route != nil {
			resp.Route = &routeResponse{
				Pool:       preview.Route.Pool.Hex(),
				Fee:        preview.Route.Fee,
				ZeroForOne: preview.Route.ZeroForOne,
			}
		}
	}
	writeJSON(w, resp)
}

type executeRequest struct {
	Requester string `json:"requester"`
	Text      string `json:"text"`
}

type executeResponse struct {
	RequestID string         `json:"request_id"`
	Action    string         `json:"action"`
	Payload   string         `json:"payload,omitempty"`
	To        string         `json:"to,omitempty"`
	Asset     string         `json:"asset,omitempty"`
	Amount    string         `json:"amount,omitempty"`
	Receipt   *swapReceipt   `json:"receipt,omitempty"`
}

type swapReceipt struct {
	Pool       string `json:"pool"`
	Fee        uint32 `json:"fee"`
	ZeroForOne bool   `json:"zero_for_one"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	requester, err := amount.ParseAddress(req.Requester)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.engine.Execute(r.Context(), requester, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := executeResponse{
		RequestID: result.RequestID,
		Action:    result.Action.String(),
		Payload:   amount.BytesHex(result.Payload),
	}
	if result.Action == intent.ActionSend {
		resp.To = result.To.Hex()
		resp.Asset = result.Asset.Hex()
		resp.Amount = amount.DecimalString(result.Amount)
	}
	if result.Receipt != nil {
		resp.Receipt = &swapReceipt{
			Pool:       result.Receipt.Pool.Hex(),
			Fee:        result.Receipt.Fee,
			ZeroForOne: result.Receipt.ZeroForOne,
			AmountIn:   amount.DecimalString(result.Receipt.AmountIn),
			AmountOut:  amount.DecimalString(result.Receipt.AmountOut),
		}
	}
	writeJSON(w, resp)
}

type describeRequest struct {
	Payload string `json:"payload"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req describeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	payload, err := amount.HexToBytes(req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	text, err := s.engine.Describe(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"text": text})
}

type verifyRequest struct {
	Intent  string `json:"intent"`
	Payload string `json:"payload"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	payload, err := amount.HexToBytes(req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	ok, err := s.engine.Verify(r.Context(), req.Intent, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"verified": ok})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	account, err := amount.ParseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.engine.Balance(r.Context(), account, r.URL.Query().Get("asset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		"asset":   balance.Asset.Hex(),
		"raw":     amount.DecimalString(balance.Raw),
		"display": balance.Display,
	})
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	supply, err := s.engine.TotalSupply(r.Context(), r.URL.Query().Get("asset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		"asset":   supply.Asset.Hex(),
		"raw":     amount.DecimalString(supply.Raw),
		"display": supply.Display,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	res, err := s.engine.ResolveName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		"account": res.Account.Hex(),
		"source":  res.Source,
	})
}

type registerAliasRequest struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
	Asset  string `json:"asset"`
	// FromToken 为真时忽略 Name，直接采用代币自报的名称与缩写。
	FromToken bool `json:"from_token"`
}

func (s *Server) handleRegisterAlias(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req registerAliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	caller, err := amount.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := amount.ParseAddress(req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.FromToken {
		err = s.engine.RegisterAliasFromToken(r.Context(), caller, token)
	} else {
		err = s.engine.RegisterAlias(r.Context(), caller, req.Name, token)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

type registerRouteRequest struct {
	Caller string `json:"caller"`
	AssetA string `json:"asset_a"`
	AssetB string `json:"asset_b"`
	Pool   string `json:"pool"`
	Fee    uint32 `json:"fee"`
}

func (s *Server) handleRegisterRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req registerRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	caller, err := amount.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	assetA, err := amount.ParseAddress(req.AssetA)
	if err != nil {
		writeError(w, err)
		return
	}
	assetB, err := amount.ParseAddress(req.AssetB)
	if err != nil {
		writeError(w, err)
		return
	}
	pool, err := amount.ParseAddress(req.Pool)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.RegisterRoute(r.Context(), caller, assetA, assetB, pool, req.Fee); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

type registerNameRequest struct {
	Caller  string `json:"caller"`
	Name    string `json:"name"`
	Account string `json:"account"`
}

func (s *Server) handleRegisterName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req registerNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	caller, err := amount.ParseAddress(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	account, err := amount.ParseAddress(req.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.RegisterName(r.Context(), caller, req.Name, account); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError 按错误码映射 HTTP 状态，并把错误码返回给调用方。
func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case xerrors.CodeInvalidSyntax, xerrors.CodeInvalidCharacter, xerrors.CodeInvalidSelector,
		xerrors.CodeInvalidArgument, xerrors.CodeOverflow:
		status = http.StatusBadRequest
	case xerrors.CodeUnknownAsset, xerrors.CodeNotFound, xerrors.CodeNoRoute:
		status = http.StatusNotFound
	case xerrors.CodeUnauthorized:
		status = http.StatusForbidden
	case xerrors.CodeInsufficientSwap, xerrors.CodeInvalidSwap:
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

// observe 包装处理器，记录请求指标。
func observe(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(started))
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

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
