// internal/httpapi/response.go
package httpapi

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, field, msg string) {
	res := errorBody{}
	res.Error.Code = code
	res.Error.Message = msg
	res.Error.Field = field
	writeJSON(w, code, res)
}

func badRequest(w http.ResponseWriter, field, msg string) { writeError(w, http.StatusBadRequest, field, msg) }
func conflict(w http.ResponseWriter, msg string)          { writeError(w, http.StatusConflict, "", msg) }
func internalError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusInternalServerError, "", msg)
}
