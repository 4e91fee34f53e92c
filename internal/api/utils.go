package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"k3rs/backend/internal/inspection"
)

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// parseOptionalDate accepts "" or YYYY-MM-DD.
func parseOptionalDate(v string) (inspection.Date, error) {
	return inspection.ParseDate(strings.TrimSpace(v))
}
