package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// successMessage is the stock message for code-0 envelopes.
const successMessage = "操作成功"

// maxBodyBytes caps how much of a request body a handler will read.
const maxBodyBytes = 1 << 20

// envelope is the wire shape every endpoint answers with. Code is zero
// on success and repeats the HTTP status on failure; Data is always
// present, null when there is nothing to carry.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// writeSuccess answers 200 with a code-0 envelope. An empty message
// falls back to the stock success text.
func writeSuccess(w http.ResponseWriter, data any, message string) {
	if message == "" {
		message = successMessage
	}
	writeJSON(w, http.StatusOK, envelope{Code: 0, Message: message, Data: data})
}

// writeFailure answers with the given status and an envelope whose code
// repeats it, so clients can key off the body alone.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Code: status, Message: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// decodeBody fills dst from the request body. A missing or malformed
// body leaves dst zero-valued; every request field has a server-side
// default, so handlers validate fields rather than reject payloads.
func decodeBody(r *http.Request, dst any) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}
