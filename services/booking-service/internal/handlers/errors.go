package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
)

// writeAppErr maps err to a response. Server-side failures are logged with the request id and
// reported with a generic message.
func writeAppErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status, msg := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed",
			"err", err,
			"request_id", httpx.RequestIDFromContext(r.Context()),
		)
	}
	httpx.WriteError(w, status, msg)
}

type msgResponse struct {
	Msg string `json:"msg"`
}
