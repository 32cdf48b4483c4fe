// internal/handlers/authorization.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/licensegate/internal/i18n"
	"github.com/javajoker/licensegate/internal/middleware"
	"github.com/javajoker/licensegate/internal/payment"
	"github.com/javajoker/licensegate/internal/services"
	"github.com/javajoker/licensegate/internal/utils"
)

type AuthorizationHandler struct {
	authorizationService *services.AuthorizationService
}

type CheckoutRequest struct {
	ClientID  string `json:"client_id" validate:"max=255"`
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
	CancelURL string `json:"cancel_url" validate:"omitempty,url"`
}

type TokenRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
	OrderID   string `json:"order_id" validate:"max=255"`
	Processor string `json:"processor" validate:"max=50"`
}

type IntrospectRequest struct {
	Token *string `json:"token" form:"token"`
}

func NewAuthorizationHandler(authorizationService *services.AuthorizationService) *AuthorizationHandler {
	return &AuthorizationHandler{
		authorizationService: authorizationService,
	}
}

// POST /licenses/:id/checkout
func (h *AuthorizationHandler) Checkout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
			return
		}
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.authorizationService.BeginCheckout(c.Request.Context(), id, req.ClientID, payment.CheckoutOptions{
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// POST /licenses/:id/token
func (h *AuthorizationHandler) IssueToken(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	issued, err := h.authorizationService.CompleteAndIssue(c.Request.Context(), id, req.SessionID,
		payment.ProofData{OrderID: req.OrderID}, req.Processor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, issued)
}

// POST /token/introspect
//
// Invalid tokens and unreadable bodies are a normal answer here, not an error.
// Only a request that names no token at all is rejected.
func (h *AuthorizationHandler) Introspect(c *gin.Context) {
	var req IntrospectRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.SuccessResponse(c, h.authorizationService.Introspect(""))
		return
	}
	if req.Token == nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationRequired, "token"), nil)
		return
	}

	utils.SuccessResponse(c, h.authorizationService.Introspect(*req.Token))
}

// GET /access?url=
//
// Runs behind middleware.AccessTokenRequired, which has already decided.
func (h *AuthorizationHandler) Access(c *gin.Context) {
	decision, _ := c.Get(middleware.AccessDecisionKey)
	utils.SuccessResponse(c, decision)
}

// AccessTarget is the URL an access check is made for.
func AccessTarget(c *gin.Context) string {
	return c.Query("url")
}

// RequireQuery rejects requests missing the named query parameter.
func RequireQuery(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query(name) == "" {
			utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationRequired, name), nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
