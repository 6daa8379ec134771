package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/pkg/types"
)

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("response-encode-failed", zap.Error(err))
	}
}

// writeError maps a service error onto the JSON envelope. Internal details
// never leave the process; the request id ties the envelope to the logs.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	kind := types.KindOf(err)
	requestID := middleware.GetReqID(r.Context())

	message := err.Error()
	if kind == types.KindInternal {
		message = "internal error"
		logger.Error("internal-error",
			zap.String("request-id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	writeJSON(w, logger, kind.HTTPStatus(), types.ErrorResponse{
		Kind:      kind,
		Error:     message,
		RequestID: requestID,
	})
}
