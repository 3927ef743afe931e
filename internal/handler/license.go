package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/receiptly/activation-api/internal/handler/dto"
	"github.com/receiptly/activation-api/internal/ierr"
	"github.com/receiptly/activation-api/internal/service"
	"go.uber.org/zap"
)

type LicenseHandler struct {
	service *service.LicenseService
	logger  *zap.Logger
}

func NewLicenseHandler(service *service.LicenseService, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.Named("LicenseHandler"),
	}
}

func (h *LicenseHandler) Create(c *gin.Context) {
	var req dto.CreateLicenseRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind create license request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	lic, err := h.service.CreateLicense(c.Request.Context(), req.Duration)
	if err != nil {
		if errors.Is(err, ierr.ErrInvalidDuration) {
			h.logger.Info("Rejected license creation with unsupported duration", zap.Int("duration", req.Duration))
		} else {
			h.logger.Error("Service failed to create license", zap.Error(err))
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateLicenseResponse{
		Code:    lic.Code,
		Expires: lic.ExpiresAt.Format(time.DateOnly),
	})
}

// List returns the full code-to-record mapping. The derived "expired"
// display status is the admin UI's concern and is never persisted.
func (h *LicenseHandler) List(c *gin.Context) {
	licenses, err := h.service.ListLicenses(c.Request.Context())
	if err != nil {
		h.logger.Error("Service failed to list licenses", zap.Error(err))
		_ = c.Error(err)
		return
	}

	out := make(map[string]dto.LicenseEntry, len(licenses))
	for _, lic := range licenses {
		out[lic.Code] = dto.NewLicenseEntry(lic)
	}

	c.JSON(http.StatusOK, out)
}

func (h *LicenseHandler) Delete(c *gin.Context) {
	code := c.Param("code")

	err := h.service.DeleteLicense(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, ierr.ErrNotFound) {
			h.logger.Info("Deletion of unknown license code", zap.String("code", code))
		} else {
			h.logger.Error("Service failed to delete license", zap.String("code", code), zap.Error(err))
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.DeleteLicenseResponse{
		Status: "deleted",
		Code:   code,
	})
}

func (h *LicenseHandler) Summary(c *gin.Context) {
	summary, err := h.service.GetSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("Service failed to compute license summary", zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
