// internal/handlers/license.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/licensegate/internal/i18n"
	"github.com/javajoker/licensegate/internal/services"
	"github.com/javajoker/licensegate/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// GET /licenses
func (h *LicenseHandler) ListLicenses(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := services.ListFilter{
		Limit:  params.Limit,
		Offset: params.Offset(),
	}

	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "active"), nil)
			return
		}
		filter.Active = &active
	}

	licenses, total, err := h.licenseService.List(c.Request.Context(), filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(licenses, total, params))
}

// GET /licenses/:id
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	license, err := h.licenseService.Get(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// GET /licenses/:id/xml
func (h *LicenseHandler) GetLicenseXML(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	license, err := h.licenseService.Get(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	c.Data(http.StatusOK, services.RSLContentType+"; charset=utf-8", []byte(services.RenderXML(license)))
}

// GET /licenses/match?url=
func (h *LicenseHandler) MatchLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	rawURL := c.Query("url")
	if rawURL == "" {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "url"), nil)
		return
	}

	license, err := h.licenseService.MatchByURL(c.Request.Context(), rawURL)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	if license == nil {
		utils.NotFoundResponse(c, i18n.KeyLicenseNoMatch)
		return
	}

	utils.SuccessResponse(c, license)
}

// POST /admin/licenses
func (h *LicenseHandler) CreateLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.LicenseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	license, err := h.licenseService.Create(c.Request.Context(), req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseCreated),
		"license": license,
	})
}

// PUT /admin/licenses/:id
func (h *LicenseHandler) UpdateLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.LicenseUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	license, err := h.licenseService.Update(c.Request.Context(), id, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseUpdated),
		"license": license,
	})
}

// DELETE /admin/licenses/:id
func (h *LicenseHandler) DeleteLicense(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.licenseService.Delete(c.Request.Context(), id); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyLicenseDeleted),
	})
}

// POST /admin/licenses/:id/publish
func (h *LicenseHandler) PublishLicense(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.licenseService.PublishXML(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyLicensePublished),
		"result":  result,
	})
}

// parseID reads the :id path parameter, responding 400 when it is not a
// positive integer.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "id"), nil)
		return 0, false
	}
	return uint(id), true
}
