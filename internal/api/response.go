package api

import (
	"errors"
	"net/http"

	"clearance-connect/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Response is the uniform envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// respondError maps a domain error to its HTTP status and envelope.
// Business-rule rejections are 400, authorization failures 403,
// absences 404, everything unexpected 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrCartItemNotFound),
		errors.Is(err, models.ErrOrderNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, models.ErrProductUnavailable),
		errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrLimitExceeded),
		errors.Is(err, models.ErrInvalidState):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
		message = err.Error()
	}

	c.JSON(status, Response{Success: false, Message: message})
}

// respondBindingError turns gin binding failures into field-level
// messages inside the envelope.
func respondBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Message: validationMessage(fe),
			})
		}
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Validation failed",
			Errors:  fields,
		})
		return
	}

	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Message: "Invalid request body",
		Errors:  err.Error(),
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "inphone":
		return "must be a valid 10-digit Indian mobile number"
	case "pincode":
		return "must be a valid 6-digit postal code"
	case "min":
		return "value is below the allowed minimum"
	case "oneof":
		return "value is not one of the allowed options"
	default:
		return "invalid value"
	}
}
