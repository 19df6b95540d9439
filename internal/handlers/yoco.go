package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/services"
)

type YocoHandler struct {
	yoco  *services.YocoService
	store *services.Store
	auth  *Auth
}

func NewYocoHandler(yoco *services.YocoService, store *services.Store, auth *Auth) *YocoHandler {
	return &YocoHandler{yoco: yoco, store: store, auth: auth}
}

// CreateCheckout opens a gateway checkout session for an existing payment
// and returns the redirect URL.
func (h *YocoHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	paymentID := mux.Vars(r)["id"]

	pid, err := primitive.ObjectIDFromHex(paymentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}
	payment, err := h.store.PaymentByID(r.Context(), pid)
	if err != nil {
		writeError(w, err)
		return
	}
	if payment.MemberID != claims.MemberID && !claims.Staff() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot pay another member's payment"})
		return
	}

	displayName := "Clan contribution"
	if !payment.MemberContributionID.IsZero() {
		if mc, err := h.store.ContributionByID(r.Context(), payment.MemberContributionID); err == nil {
			if ct, err := h.store.TypeByID(r.Context(), mc.ContributionTypeID); err == nil {
				displayName = ct.Name
			}
		}
	}

	redirectURL, err := h.yoco.CreateCheckout(r.Context(), paymentID, displayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": redirectURL})
}

// Webhook receives gateway payment events. The signature is verified before
// any state changes; a bad signature changes nothing.
func (h *YocoHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read webhook body"})
		return
	}

	if err := h.yoco.HandleCallback(r.Context(), body, r.Header.Get("webhook-signature")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
