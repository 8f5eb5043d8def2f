// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/brigade-erp/brigade-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Limit denials are a soft stop and map to 200 with a deny payload at the
// handler level; they only reach here when a handler chose the error path.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validation   *shared.ValidationError
		insufficient *shared.InsufficientStockError
		notFound     *shared.NotFoundError
		consistency  *shared.ConsistencyError
		limit        *shared.LimitReachedError
	)
	switch {
	case errors.As(err, &validation):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: validation.Reason,
			Field:  validation.Field,
		})
	case errors.As(err, &insufficient):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.As(err, &notFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &consistency):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &limit):
		Problem(w, http.StatusForbidden, "Limit Reached", limit.Message)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
