package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/spigell/mentor-matcher/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, errorResponse{Success: false, Error: errCode, Message: message})
}

// writeAppError maps err's apperr code onto the status and error body.
func writeAppError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	message := apperr.MessageOf(err)
	if code == apperr.Internal {
		message = "internal error"
	}
	writeError(w, apperr.HTTPStatus(code), string(code), message)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.InvalidArgument, "request body is empty")
		}
		return apperr.Wrap(apperr.InvalidArgument, err, "request body is not valid JSON")
	}
	return nil
}
