package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"kwikflow/internal/repo"
)

const (
	msgValidation  = "Validation error"
	msgInvalidBody = "Invalid request body"
	msgInternal    = "Internal server error"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// respondBindError maps a ShouldBindJSON failure onto 400 or 413.
func respondBindError(c *gin.Context, err error) {
	var (
		verrs    validator.ValidationErrors
		typeErr  *json.UnmarshalTypeError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs):
		out := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, fieldError{Field: fe.Field(), Message: describe(fe)})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msgValidation, "errors": out})
	case errors.As(err, &typeErr) && typeErr.Field != "":
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message": msgValidation,
			"errors":  []fieldError{{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()}},
		})
	case errors.As(err, &tooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, "Request body too large")
	default:
		respondError(c, http.StatusBadRequest, msgInvalidBody)
	}
}

// respondStoreError answers 404 for missing records and 500 for anything else.
func respondStoreError(c *gin.Context, logger *slog.Logger, entity string, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		respondError(c, http.StatusNotFound, entity+" not found")
		return
	}
	respondInternal(c, logger, err)
}

func respondInternal(c *gin.Context, logger *slog.Logger, err error) {
	logger.Error("request failed",
		"request_id", c.GetString(requestIDKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	respondError(c, http.StatusInternalServerError, msgInternal)
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "jsonarray":
		return "must be a JSON array"
	case "jsonobject":
		return "must be a JSON object"
	default:
		return "is invalid"
	}
}
