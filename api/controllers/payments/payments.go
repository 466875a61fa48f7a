package payments

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rank0/digimenu-backend/api/controllers/actorcontext"
	"github.com/rank0/digimenu-backend/api/responses"
	"github.com/rank0/digimenu-backend/api/validators"
	internalpayments "github.com/rank0/digimenu-backend/internal/payments"
	pkgerrors "github.com/rank0/digimenu-backend/pkg/errors"
	"github.com/rank0/digimenu-backend/pkg/logger"
)

// Zarinpal authorities are 36 characters; Status is OK or NOK.
const (
	maxAuthorityLen = 64
	maxStatusLen    = 8
)

// Start opens a gateway session for the order and returns the StartPay URL.
func Start(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Start(r.Context(), internalpayments.StartInput{OrderID: orderID, Actor: actor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type paymentDTO struct {
	ID         string  `json:"id"`
	Amount     int64   `json:"amount"`
	Authority  string  `json:"authority"`
	IsFinal    bool    `json:"is_final"`
	StatusCode *int    `json:"status_code,omitempty"`
	RefID      *string `json:"ref_id,omitempty"`
	Message    *string `json:"message,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// List returns every gateway attempt recorded for the order.
func List(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByOrder(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]paymentDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, paymentDTO{
				ID:         row.ID.String(),
				Amount:     row.Amount,
				Authority:  row.Authority,
				IsFinal:    row.IsFinal,
				StatusCode: row.StatusCode,
				RefID:      row.RefID,
				Message:    row.Message,
				CreatedAt:  row.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// Callback settles the payment the gateway redirected the payer back for.
// With a result URL configured the payer is redirected there with the
// outcome in the query; otherwise the outcome is returned as JSON.
func Callback(svc internalpayments.Service, resultURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.HandleCallback(r.Context(), internalpayments.CallbackInput{
			Authority: validators.QueryString(r, "Authority", maxAuthorityLen),
			Status:    validators.QueryString(r, "Status", maxStatusLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if resultURL == "" {
			responses.WriteSuccess(w, result)
			return
		}
		target, err := resultRedirect(resultURL, result)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build result url"))
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func resultRedirect(base string, result *internalpayments.CallbackResult) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("order_id", result.OrderID.String())
	q.Set("paid", strconv.FormatBool(result.Paid))
	if result.RefID != "" {
		q.Set("ref_id", result.RefID)
	}
	if result.Message != "" {
		q.Set("message", result.Message)
	}
	if result.StatusCode != nil {
		q.Set("code", strconv.Itoa(*result.StatusCode))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
