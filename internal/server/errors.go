package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"demand_forecast/internal/model"
	"demand_forecast/internal/session"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		validation  *model.ValidationError
		unknownKey  *model.UnknownKeyError
		unknownDate *model.UnknownDateError
		missing     *model.MissingFeatureError
		history     *model.InsufficientHistoryError
		emptyTrain  *model.EmptyTrainingSetError
		emptyTest   *model.EmptyTestSetError
		notTrained  *session.NotTrainedError
		rateLimited *model.RateLimitedError
		remote      *model.RemoteError
		timeout     *model.TimeoutError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unknownKey), errors.As(err, &unknownDate):
		return http.StatusNotFound
	case errors.As(err, &notTrained):
		return http.StatusConflict
	case errors.As(err, &missing), errors.As(err, &history), errors.As(err, &emptyTrain), errors.As(err, &emptyTest):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &remote):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
