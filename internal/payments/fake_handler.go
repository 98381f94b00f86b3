package payments

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dheysonavelleda/radiestesia-agendamento/pkg/logging"
)

type chargeProcessor interface {
	Process(ctx context.Context, paymentID string) error
}

// FakePaymentsHandler exposes a tiny demo UI to approve fake charges.
// Only mount this handler when ALLOW_FAKE_PAYMENTS=true.
type FakePaymentsHandler struct {
	gateway   *FakeGateway
	processor chargeProcessor
	logger    *logging.Logger
}

func NewFakePaymentsHandler(gateway *FakeGateway, processor chargeProcessor, logger *logging.Logger) *FakePaymentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakePaymentsHandler{gateway: gateway, processor: processor, logger: logger}
}

func (h *FakePaymentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/payments/{chargeID}", h.HandleCheckout)
	r.Post("/payments/{chargeID}/complete", h.HandleComplete)
	r.Post("/payments/{chargeID}/reject", h.HandleReject)
	return r
}

func (h *FakePaymentsHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	chargeID := strings.TrimSpace(chi.URLParam(r, "chargeID"))
	charge, ok := h.gateway.Charge(chargeID)
	if !ok {
		http.Error(w, "charge not found", http.StatusNotFound)
		return
	}
	id := html.EscapeString(charge.ExternalID)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html lang="pt-BR">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Pagamento de demonstração</title>
    <style>
      body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,sans-serif;max-width:680px;margin:40px auto;padding:0 16px;}
      .card{border:1px solid #e5e7eb;border-radius:12px;padding:18px;}
      .btn{display:inline-block;background:#111827;color:#fff;padding:12px 16px;border-radius:10px;border:0;cursor:pointer;}
      .muted{color:#6b7280;font-size:14px;}
    </style>
  </head>
  <body>
    <h1>Pagamento de demonstração</h1>
    <div class="card">
      <p><strong>Valor:</strong> R$ %.2f</p>
      <p><strong>Situação:</strong> %s</p>
      <p class="muted">Nenhum pagamento real é processado.</p>
      <form method="POST" action="/demo/payments/%s/complete"><button class="btn" type="submit">Aprovar</button></form>
      <form method="POST" action="/demo/payments/%s/reject"><button class="btn" type="submit">Recusar</button></form>
      <p class="muted">Referência: <code>%s</code></p>
    </div>
  </body>
</html>`, toReais(charge.Amount), html.EscapeString(string(charge.Status)), id, id, html.EscapeString(charge.Reference))
}

func (h *FakePaymentsHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, LegApproved)
}

func (h *FakePaymentsHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, LegRejected)
}

func (h *FakePaymentsHandler) settle(w http.ResponseWriter, r *http.Request, status LegStatus) {
	chargeID := strings.TrimSpace(chi.URLParam(r, "chargeID"))
	if err := h.gateway.SetStatus(chargeID, status); err != nil {
		if errors.Is(err, ErrChargeNotFound) {
			http.Error(w, "charge not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update charge", http.StatusInternalServerError)
		return
	}
	if err := h.processor.Process(r.Context(), chargeID); err != nil {
		h.logger.Error("fake payment processing failed", "error", err, "charge_id", chargeID)
		http.Error(w, "failed to process payment", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/demo/payments/"+chargeID, http.StatusSeeOther)
}
