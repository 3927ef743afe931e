package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/receiptly/activation-api/internal/domain/license"
	"github.com/receiptly/activation-api/internal/handler/dto"
	"github.com/receiptly/activation-api/internal/service"
	"go.uber.org/zap"
)

// ActivationHandler serves the public validation endpoint consumed by
// the browser extension.
type ActivationHandler struct {
	service *service.ActivationService
	logger  *zap.Logger
}

func NewActivationHandler(service *service.ActivationService, logger *zap.Logger) *ActivationHandler {
	return &ActivationHandler{
		service: service,
		logger:  logger.Named("ActivationHandler"),
	}
}

// Validate handles GET /api/validate?code=&device=. Missing parameters
// are an input-level error: 400 with an invalid verdict. All other
// outcomes are 200 with the verdict in the body.
func (h *ActivationHandler) Validate(c *gin.Context) {
	code := c.Query("code")
	device := c.Query("device")

	if code == "" || device == "" {
		h.logger.Debug("Validation request with missing parameters")
		c.JSON(http.StatusBadRequest, dto.ValidateResponse{Status: license.StatusInvalid})
		return
	}

	verdict, err := h.service.Validate(c.Request.Context(), code, device)
	if err != nil {
		h.logger.Error("Validation failed on storage", zap.String("code", code), zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, verdict)
}
