package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// errorBody — тело ответа с ошибкой.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor сопоставляет вид ошибки с HTTP-статусом.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists, domain.KindInvalidState, domain.KindDeleteBlocked:
		return http.StatusConflict
	case domain.KindInsufficientStock:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		kind = domain.KindInternal
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: string(kind), Message: message}})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.writeError(c, domain.Validationf("invalid request body: %v", err))
}

// pathID разбирает числовой идентификатор из пути.
func pathID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryInt разбирает необязательный целочисленный параметр запроса.
func queryInt(c *gin.Context, name string, fallback int64) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.Validationf("invalid %s %q", name, raw)
	}
	return v, nil
}
