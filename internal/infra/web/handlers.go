package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ai-entitlement-service/internal/domain"
	"ai-entitlement-service/internal/usecase"
)

// envelope is the uniform response body. Code 0 means success; error codes
// are stable so clients can switch on them independent of the HTTP status.
type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Code: 0, Message: "ok", Data: data})
}

// errorStatus maps the domain error taxonomy onto HTTP statuses and stable
// business codes. Unknown errors are masked as 500 without detail.
func errorStatus(err error) (status, code int, msg string) {
	switch {
	case errors.Is(err, domain.ErrParamMissing):
		return http.StatusBadRequest, 1001, "missing required parameter"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, 1002, "invalid argument"
	case errors.Is(err, domain.ErrAmountMismatch):
		return http.StatusBadRequest, 1003, "amount does not match catalog price"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, 1004, "not found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, 1005, "already exists"
	case errors.Is(err, domain.ErrAlreadyPurchased):
		return http.StatusConflict, 1006, "product already purchased"
	case errors.Is(err, domain.ErrOrderExpired):
		return http.StatusGone, 1007, "order expired"
	case errors.Is(err, domain.ErrQuotaExhausted):
		return http.StatusTooManyRequests, 1008, "quota exhausted"
	case errors.Is(err, domain.ErrVipExpired):
		return http.StatusForbidden, 1009, "membership expired"
	case errors.Is(err, domain.ErrPlanNotConfigured):
		return http.StatusNotFound, 1010, "plan not configured"
	case errors.Is(err, domain.ErrCodeInvalid):
		return http.StatusNotFound, 1011, "activation code invalid"
	case errors.Is(err, domain.ErrCodeConsumed):
		return http.StatusConflict, 1012, "activation code already consumed"
	case errors.Is(err, domain.ErrCodeExpired):
		return http.StatusGone, 1013, "activation code expired"
	case errors.Is(err, domain.ErrCallbackFailed):
		return http.StatusBadRequest, 1014, "callback verification failed"
	case errors.Is(err, domain.ErrGatewayFailure), errors.Is(err, domain.ErrDownstreamUnavailable):
		return http.StatusBadGateway, 1015, "upstream provider unavailable"
	case errors.Is(err, domain.ErrCreditFailed):
		// Payment settled; crediting is retried by the reconciler.
		return http.StatusAccepted, 1016, "payment accepted, crediting in progress"
	case errors.Is(err, domain.ErrLockUnavailable):
		return http.StatusServiceUnavailable, 1017, "busy, try again"
	default:
		return http.StatusInternalServerError, 1000, "internal error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code, msg := errorStatus(err)
	writeJSON(w, status, envelope{Code: code, Message: msg})
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}

// ---- entitlements ----

func entitlementGetHandler(uc usecase.EntitlementUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := uc.Read(r.Context(), r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, view)
	}
}

type consumeRequest struct {
	UserID string `json:"user_id"`
	Target string `json:"target"`
	Amount int64  `json:"amount"`
}

func entitlementConsumeHandler(uc usecase.EntitlementUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req consumeRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Amount == 0 {
			req.Amount = 1
		}
		if err := uc.Consume(r.Context(), req.UserID, req.Target, req.Amount); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, nil)
	}
}

type giftRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
}

func entitlementGiftHandler(uc usecase.EntitlementUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req giftRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := uc.Gift(r.Context(), req.UserID, req.Action); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, nil)
	}
}

// ---- orders ----

type orderCreateRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Amount    string `json:"amount"` // decimal string, compared server-side
}

type orderCreateResponse struct {
	OrderID    string `json:"order_id"`
	Status     string `json:"status"`
	PayPayload string `json:"pay_payload"`
}

func orderCreateHandler(uc usecase.SettlementUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderCreateRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		quoted, err := decimal.NewFromString(req.Amount)
		if err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		order, payment, err := uc.CreateOrder(r.Context(), usecase.CheckoutRequest{
			UserID:    req.UserID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Quoted:    quoted,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, envelope{Code: 0, Message: "ok", Data: orderCreateResponse{
			OrderID:    strconv.FormatInt(order.ID, 10),
			Status:     string(order.Status),
			PayPayload: payment.GatewayPayload,
		}})
	}
}

func orderCallbackHandler(uc usecase.SettlementUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		order, err := uc.HandleCallback(r.Context(), raw)
		if err != nil && !errors.Is(err, domain.ErrCreditFailed) {
			writeError(w, err)
			return
		}
		// Credit failures still acknowledge the callback: payment settled and
		// the reconciler owns the retry, so the gateway must not re-notify.
		writeOK(w, map[string]string{
			"order_id": strconv.FormatInt(order.ID, 10),
			"status":   string(order.Status),
		})
	}
}

type repayRequest struct {
	UserID string `json:"user_id"`
}

func orderRepayHandler(uc usecase.SettlementUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		var req repayRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		payload, err := uc.Repay(r.Context(), req.UserID, orderID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, map[string]string{"pay_payload": payload})
	}
}

// ---- activation codes ----

type redeemRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

func codeRedeemHandler(uc usecase.RedeemUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req redeemRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		order, err := uc.Redeem(r.Context(), req.UserID, req.Code)
		if err != nil && !errors.Is(err, domain.ErrCreditFailed) {
			writeError(w, err)
			return
		}
		writeOK(w, map[string]string{
			"order_id": strconv.FormatInt(order.ID, 10),
			"status":   string(order.Status),
		})
	}
}

type codeGenerateRequest struct {
	ProductID string `json:"product_id"`
	Count     int    `json:"count"`
	ExpireAt  string `json:"expire_at"` // RFC3339, optional
}

func codeGenerateHandler(uc usecase.RedeemUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeGenerateRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		var expire *time.Time
		if req.ExpireAt != "" {
			t, err := time.Parse(time.RFC3339, req.ExpireAt)
			if err != nil {
				writeError(w, domain.ErrInvalidArgument)
				return
			}
			expire = &t
		}
		codes, err := uc.GenerateCodes(r.Context(), req.ProductID, req.Count, expire)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, map[string]interface{}{"codes": codes})
	}
}
