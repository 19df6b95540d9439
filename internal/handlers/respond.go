package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError maps service errors onto HTTP statuses via their sentinels.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrSignature):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrGateway):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
