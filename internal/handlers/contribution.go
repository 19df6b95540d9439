package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/services"
)

type ContributionHandler struct {
	service *services.ContributionService
	auth    *Auth
}

func NewContributionHandler(service *services.ContributionService, auth *Auth) *ContributionHandler {
	return &ContributionHandler{service: service, auth: auth}
}

type createTypeRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	AmountCents int64   `json:"amount_cents"`
	Recurrence  string  `json:"recurrence"`
	Scope       string  `json:"scope"`
	FamilyID    string  `json:"family_id,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// CreateType saves a contribution type and fans out member contributions.
// Only executive council members may create types.
func (h *ContributionHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claims.Staff() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only executives can create contributions"})
		return
	}

	var req createTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ct := &models.ContributionType{
		Name:        req.Name,
		Description: req.Description,
		Category:    models.Category(req.Category),
		AmountCents: req.AmountCents,
		Recurrence:  models.Recurrence(req.Recurrence),
		Scope:       models.Scope(req.Scope),
	}
	if req.FamilyID != "" {
		familyID, err := primitive.ObjectIDFromHex(req.FamilyID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family_id"})
			return
		}
		ct.FamilyID = familyID
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "due_date must be YYYY-MM-DD"})
			return
		}
		ct.DueDate = &due
	}

	created, fanned, err := h.service.CreateType(r.Context(), ct, claims.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"contribution_type":     created,
		"contributions_created": fanned,
	})
}

func (h *ContributionHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Authenticate(r); err != nil {
		writeError(w, err)
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	types, err := h.service.ListTypes(r.Context(), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// GetTypeBySlug returns a contribution type with its approved-payment total.
func (h *ContributionHandler) GetTypeBySlug(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Authenticate(r); err != nil {
		writeError(w, err)
		return
	}
	slug := mux.Vars(r)["slug"]

	ct, err := h.service.TypeBySlug(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.service.TotalCollectedCents(r.Context(), ct.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contribution_type":     ct,
		"total_collected_cents": total,
		"total_collected":       models.FormatRands(total),
	})
}

type updateTypeRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Scope       *string `json:"scope,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (h *ContributionHandler) UpdateType(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claims.Staff() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only executives can update contributions"})
		return
	}

	var req updateTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	var scope *models.Scope
	if req.Scope != nil {
		s := models.Scope(*req.Scope)
		scope = &s
	}

	ct, err := h.service.UpdateType(r.Context(), mux.Vars(r)["slug"], req.Name, req.Description, req.AmountCents, scope, req.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

// ListContributions returns the caller's contributions, or any member's
// contributions for staff via the member_id query parameter.
func (h *ContributionHandler) ListContributions(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	memberID := claims.MemberID
	if requested := r.URL.Query().Get("member_id"); requested != "" {
		if !claims.Staff() {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot view another member's contributions"})
			return
		}
		if requested == "all" {
			memberID = primitive.NilObjectID
		} else {
			memberID, err = primitive.ObjectIDFromHex(requested)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid member_id"})
				return
			}
		}
	}

	var statuses []models.ContributionStatus
	if status := r.URL.Query().Get("status"); status != "" {
		statuses = append(statuses, models.ContributionStatus(status))
	}

	contributions, err := h.service.ListContributions(r.Context(), memberID, statuses)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contributions)
}

func (h *ContributionHandler) GetContribution(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid contribution id"})
		return
	}

	mc, err := h.service.ContributionByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if mc.MemberID != claims.MemberID && !claims.Staff() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot view another member's contribution"})
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

// RunReminders triggers the payment reminder sweep.
func (h *ContributionHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claims.Staff() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "only executives can run reminders"})
		return
	}

	queued, err := h.service.RunReminders(r.Context(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reminders_queued": queued})
}
