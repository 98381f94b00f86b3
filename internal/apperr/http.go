package apperr

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes err as {"error": ..., "code": ...} with the mapped status.
func WriteJSON(w http.ResponseWriter, err error) {
	code, msg := Public(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(KindOf(err)))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
