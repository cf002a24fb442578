package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/escolab/pi-pipeline/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps pipeline sentinels to HTTP statuses and emits the
// message of the outermost AppError when one is present.
func writeError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)

	msg := http.StatusText(status)
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	} else if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
