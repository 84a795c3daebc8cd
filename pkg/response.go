package pkg

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var ContentType = struct {
	JSON string
	Text string
}{
	JSON: "application/json",
	Text: "text/plain; charset=utf-8",
}

func WriteResponseBytes(w http.ResponseWriter, contentType string, message []byte, statusCode int) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(statusCode)

	if _, err := w.Write(message); err != nil {
		log.Errorf("failed to write response [%s]: %s", message, err)
	}
}

// WriteJSONResponse marshals payload and writes it with the given status.
// A payload that cannot be marshalled results in a 500.
func WriteJSONResponse(w http.ResponseWriter, payload any, statusCode int) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal response payload: %s", err)
		WriteResponseBytes(w, ContentType.Text, []byte("internal server error"), http.StatusInternalServerError)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, payloadJson, statusCode)
}

func WriteJSONResponseOK(w http.ResponseWriter, payload any) {
	WriteJSONResponse(w, payload, http.StatusOK)
}

type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func WriteJSONError(w http.ResponseWriter, message string, fields []string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message, Fields: fields}, statusCode)
}
