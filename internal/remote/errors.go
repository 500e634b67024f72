package remote

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"schedule-sync-backend/internal/apperror"
)

const maxDetailLen = 512

// classifyStatus maps a non-2xx response. Overload and server-side failures
// are worth retrying, everything else is a refusal.
func classifyStatus(status int, body []byte) error {
	details := strings.TrimSpace(string(body))
	if len(details) > maxDetailLen {
		details = details[:maxDetailLen]
	}
	switch {
	case status >= 500,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests:
		return apperror.RemoteUnavailable(errors.New(http.StatusText(status) + ": " + details))
	default:
		return apperror.RemoteRejected(status, details)
	}
}

// classifyDB maps an error from the Postgres driver.
func classifyDB(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return apperror.RemoteUnavailable(err)
		}
		details := pgErr.Message
		if pgErr.Detail != "" {
			details += ": " + pgErr.Detail
		}
		return apperror.RemoteRejected(http.StatusUnprocessableEntity, details)
	}
	// Connection refused, timeouts and cancellations all land here.
	return apperror.RemoteUnavailable(err)
}
