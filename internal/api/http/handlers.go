package credits

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	model "github.com/glkeru/credits/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type RedemptionAPI interface {
	Issue(ctx context.Context, accountRef string, holderId string, ttl time.Duration) (model.IssuedToken, error)
	Preview(ctx context.Context, token string) (model.TokenPreview, error)
	Redeem(ctx context.Context, req model.RedeemRequest) (model.Transaction, error)
	Refund(ctx context.Context, tnxId uuid.UUID) (model.Transaction, error)
	Transaction(ctx context.Context, tnxId uuid.UUID) (model.Transaction, error)
	Balance(ctx context.Context, accountId string) (int64, error)
	Transactions(ctx context.Context, accountId string, from time.Time, to time.Time) ([]model.Transaction, error)
}

type CreditsHandler struct {
	router *mux.Router
	serv   RedemptionAPI
	logger *zap.Logger
}

type IssueRequest struct {
	AccountRef string `json:"accountRef"`
	HolderID   string `json:"holderId"`
	TTLMinutes int    `json:"ttlMinutes"`
}

type PreviewRequest struct {
	Token string `json:"token"`
}

type BalanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
}

type ErrorResponse struct {
	Reason    model.Reason `json:"reason"`
	Balance   int64        `json:"balance,omitempty"`
	Shortfall int64        `json:"shortfall,omitempty"`
}

func NewHandler(serv RedemptionAPI, logger *zap.Logger, reg *prometheus.Registry) *CreditsHandler {
	router := mux.NewRouter()
	handler := &CreditsHandler{router, serv, logger}
	router.Use(MiddlewareLog(reg))
	router.HandleFunc("/tokens", handler.IssueHandler).Methods(http.MethodPost)
	router.HandleFunc("/tokens/preview", handler.PreviewHandler).Methods(http.MethodPost)
	router.HandleFunc("/redeem", handler.RedeemHandler).Methods(http.MethodPost)
	router.HandleFunc("/transactions/{id}", handler.TransactionHandler).Methods(http.MethodGet)
	router.HandleFunc("/transactions/{id}/refund", handler.RefundHandler).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{id}/balance", handler.BalanceHandler).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}/transactions", handler.TransactionsHandler).Methods(http.MethodGet)
	if reg != nil {
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return handler
}

func (r *CreditsHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

func (r *CreditsHandler) Log(msg string, service string, err error) {
	r.logger.Error(msg,
		zap.String("service", service),
		zap.Error(err),
	)
}

func (r *CreditsHandler) writeJSON(w http.ResponseWriter, status int, v any, service string) {
	j, err := json.Marshal(v)
	if err != nil {
		r.Log("Marshal", service, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(j)
}

// Код ответа по причине отказа
func statusOf(reason model.Reason) int {
	switch reason {
	case model.ReasonMalformed, model.ReasonInvalidRequest:
		return http.StatusBadRequest
	case model.ReasonBadSignature:
		return http.StatusUnauthorized
	case model.ReasonExpired, model.ReasonAlreadyUsedOrExpired:
		return http.StatusGone
	case model.ReasonInvalidAccount:
		return http.StatusForbidden
	case model.ReasonInsufficientCredits:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// Ошибка сервиса в ответ. Внутренняя причина наружу не отдается
func (r *CreditsHandler) writeError(w http.ResponseWriter, err error, service string) {
	var rej *model.RejectionError
	if !errors.As(err, &rej) {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		rej = model.Reject(err)
	}
	status := statusOf(rej.Reason)
	if status >= http.StatusInternalServerError {
		r.Log("Service", service, err)
	}
	r.writeJSON(w, status, ErrorResponse{Reason: rej.Reason, Balance: rej.Balance, Shortfall: rej.Shortfall}, service)
}

func (r *CreditsHandler) readJSON(w http.ResponseWriter, req *http.Request, v any, service string) bool {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.Log("Get request body", service, err)
		http.Error(w, "Body is empty", http.StatusBadRequest)
		return false
	}
	defer req.Body.Close()
	err = json.Unmarshal(body, v)
	if err != nil {
		r.writeJSON(w, http.StatusBadRequest, ErrorResponse{Reason: model.ReasonInvalidRequest}, service)
		return false
	}
	return true
}

// Выпуск токена
func (r *CreditsHandler) IssueHandler(w http.ResponseWriter, req *http.Request) {
	issue := IssueRequest{}
	if !r.readJSON(w, req, &issue, "IssueHandler") {
		return
	}
	token, err := r.serv.Issue(req.Context(), issue.AccountRef, issue.HolderID, time.Duration(issue.TTLMinutes)*time.Minute)
	if err != nil {
		r.writeError(w, err, "IssueHandler")
		return
	}
	r.writeJSON(w, http.StatusCreated, token, "IssueHandler")
}

// Просмотр токена
func (r *CreditsHandler) PreviewHandler(w http.ResponseWriter, req *http.Request) {
	preview := PreviewRequest{}
	if !r.readJSON(w, req, &preview, "PreviewHandler") {
		return
	}
	result, err := r.serv.Preview(req.Context(), preview.Token)
	if err != nil {
		r.writeError(w, err, "PreviewHandler")
		return
	}
	r.writeJSON(w, http.StatusOK, result, "PreviewHandler")
}

// Погашение
func (r *CreditsHandler) RedeemHandler(w http.ResponseWriter, req *http.Request) {
	redeem := model.RedeemRequest{}
	if !r.readJSON(w, req, &redeem, "RedeemHandler") {
		return
	}
	tnx, err := r.serv.Redeem(req.Context(), redeem)
	if err != nil {
		r.writeError(w, err, "RedeemHandler")
		return
	}
	r.writeJSON(w, http.StatusOK, tnx, "RedeemHandler")
}

// Сторно
func (r *CreditsHandler) RefundHandler(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		http.Error(w, "Transaction not found", http.StatusNotFound)
		return
	}
	tnx, err := r.serv.Refund(req.Context(), id)
	if err != nil {
		r.writeError(w, err, "RefundHandler")
		return
	}
	r.writeJSON(w, http.StatusOK, tnx, "RefundHandler")
}

// Транзакция по ID
func (r *CreditsHandler) TransactionHandler(w http.ResponseWriter, req *http.Request) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		http.Error(w, "Transaction not found", http.StatusNotFound)
		return
	}
	tnx, err := r.serv.Transaction(req.Context(), id)
	if err != nil {
		r.writeError(w, err, "TransactionHandler")
		return
	}
	r.writeJSON(w, http.StatusOK, tnx, "TransactionHandler")
}

// Баланс
func (r *CreditsHandler) BalanceHandler(w http.ResponseWriter, req *http.Request) {
	account := mux.Vars(req)["id"]
	balance, err := r.serv.Balance(req.Context(), account)
	if err != nil {
		r.writeError(w, err, "BalanceHandler")
		return
	}
	r.writeJSON(w, http.StatusOK, BalanceResponse{account, balance}, "BalanceHandler")
}

// Транзакции за период, даты включительно
func (r *CreditsHandler) TransactionsHandler(w http.ResponseWriter, req *http.Request) {
	account := mux.Vars(req)["id"]
	from, err := time.Parse(dateLayout, req.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "from: expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(dateLayout, req.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "to: expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		http.Error(w, "to is before from", http.StatusBadRequest)
		return
	}
	tnxs, err := r.serv.Transactions(req.Context(), account, from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		r.writeError(w, err, "TransactionsHandler")
		return
	}
	if tnxs == nil {
		tnxs = []model.Transaction{}
	}
	r.writeJSON(w, http.StatusOK, tnxs, "TransactionsHandler")
}
