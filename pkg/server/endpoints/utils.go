package endpoints

import (
	"encoding/json"
	"net/http"
)

func respondWithError(w http.ResponseWriter, code int, payload interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"error": payload})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		response, _ = json.Marshal(map[string]interface{}{"error": err.Error()})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
