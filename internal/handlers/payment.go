package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/services"
	"github.com/tshiamom/clanfund-gobackend/internal/upload"
)

type PaymentHandler struct {
	payments *services.PaymentService
	yoco     *services.YocoService
	store    *services.Store
	uploader *upload.Uploader
	auth     *Auth
}

func NewPaymentHandler(payments *services.PaymentService, yoco *services.YocoService, store *services.Store, uploader *upload.Uploader, auth *Auth) *PaymentHandler {
	return &PaymentHandler{payments: payments, yoco: yoco, store: store, uploader: uploader, auth: auth}
}

type checkoutRequest struct {
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
}

// Checkout starts a payment against a contribution. Cash and bank payments
// wait for treasurer approval; mobile payments continue to the gateway and
// the response carries the redirect URL.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	contributionID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid contribution id"})
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	mc, err := h.store.ContributionByID(r.Context(), contributionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if mc.MemberID != claims.MemberID && !claims.Staff() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot pay another member's contribution"})
		return
	}

	payment, err := h.payments.Checkout(r.Context(), services.CheckoutInput{
		ContributionID: contributionID,
		MemberID:       mc.MemberID,
		ActorID:        claims.MemberID,
		Method:         models.PaymentMethod(req.Method),
		AmountCents:    req.AmountCents,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{"payment": payment}
	if payment.Method == models.MethodMobile {
		ct, err := h.store.TypeByID(r.Context(), mc.ContributionTypeID)
		if err != nil {
			writeError(w, err)
			return
		}
		redirectURL, err := h.yoco.CreateCheckout(r.Context(), payment.ID.Hex(), ct.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		resp["redirect_url"] = redirectURL
	}
	writeJSON(w, http.StatusCreated, resp)
}

// LogPayment is the treasurer channel: a multipart form carrying the
// payment details plus a proof-of-payment file.
func (h *PaymentHandler) LogPayment(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claims.Role.CanApprovePayments() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the treasurer or chairperson can log payments"})
		return
	}

	contributionID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid contribution id"})
		return
	}

	if err := r.ParseMultipartForm(upload.MaxProofBytes + 1<<20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	amountCents, err := strconv.ParseInt(r.FormValue("amount_cents"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount_cents must be an integer"})
		return
	}

	file, header, err := r.FormFile("proof")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "proof file is required"})
		return
	}
	defer file.Close()

	proofURL, err := h.uploader.UploadProof(r.Context(), file, header)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	treasurer, err := h.store.MemberByID(r.Context(), claims.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	payment, err := h.payments.LogPayment(r.Context(), services.LogPaymentInput{
		ContributionID: contributionID,
		TreasurerID:    claims.MemberID,
		TreasurerName:  treasurer.FullName,
		Method:         models.PaymentMethod(r.FormValue("method")),
		AmountCents:    amountCents,
		Reference:      r.FormValue("reference"),
		Receipt:        r.FormValue("receipt"),
		ProofURL:       proofURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (h *PaymentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claims.Role.CanApprovePayments() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the treasurer or chairperson can approve payments"})
		return
	}
	paymentID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}

	payment, err := h.payments.Approve(r.Context(), paymentID, claims.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claims.Role.CanApprovePayments() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only the treasurer or chairperson can reject payments"})
		return
	}
	paymentID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	payment, err := h.payments.Reject(r.Context(), paymentID, claims.MemberID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	paymentID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}

	payment, err := h.store.PaymentByID(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if payment.MemberID != claims.MemberID && !claims.Staff() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot view another member's payment"})
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// ListPayments returns the caller's payments, or all payments for staff,
// filtered by approval status and created_at date range.
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	memberID := claims.MemberID
	if claims.Staff() && r.URL.Query().Get("scope") == "all" {
		memberID = primitive.NilObjectID
	}

	approval := models.ApprovalStatus(r.URL.Query().Get("status"))
	var start, end *time.Time
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_date must be RFC3339"})
			return
		}
		start = &t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date must be RFC3339"})
			return
		}
		end = &t
	}

	payments, err := h.store.ListPayments(r.Context(), memberID, approval, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}
