package handler

import (
	"context"
	"errors"
	"net/http"

	"animesync/internal/model"
	"animesync/pkg/apierror"
	"animesync/pkg/response"
)

// toAPIError maps domain errors to HTTP errors.
func toAPIError(err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		return apierror.BadRequest(err.Error())
	case errors.Is(err, model.ErrNotFound):
		return apierror.NotFound("anime not found")
	case errors.Is(err, model.ErrRemoteUnavailable):
		return apierror.ServiceUnavailable("anime catalog is unavailable, try again later")
	case errors.Is(err, model.ErrRemoteFormat):
		return apierror.BadGateway("anime catalog returned an unreadable response")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apierror.ServiceUnavailable("request cancelled")
	default:
		return apierror.InternalError("")
	}
}

func writeError(w http.ResponseWriter, err error) {
	response.Error(w, toAPIError(err))
}
