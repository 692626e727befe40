package auth

import (
	"fmt"
	"time"

	"catalogue-order/httpServices/backend"
	"catalogue-order/logger"
	"catalogue-order/middleware"
	sessionService "catalogue-order/services/session"
	"catalogue-order/types"
	authTypes "catalogue-order/types/auth"
	"catalogue-order/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// AuthController handles the emailed-OTP login flow. OTP generation and
// delivery live in the backend collaborator; this controller proxies the
// auth actions and mints the portal session once a code verifies.
type AuthController struct {
	backendClient  *backend.Client
	sessions       *sessionService.Service
	loggerInstance *logger.AsyncLogger
}

// NewAuthController creates a new auth controller
func NewAuthController(backendClient *backend.Client, sessions *sessionService.Service, asyncLogger *logger.AsyncLogger) *AuthController {
	return &AuthController{
		backendClient:  backendClient,
		sessions:       sessions,
		loggerInstance: asyncLogger,
	}
}

// CheckEmail asks the collaborator whether this email may place orders.
func (h *AuthController) CheckEmail(c *fiber.Ctx) error {
	var req authTypes.CheckEmailRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, err.Error()))
	}

	resp, err := h.backendClient.CheckEmail(c.Context(), req.Email)
	if err != nil {
		logger.Error("checkEmail call failed", err)
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway, "Could not reach the authorization service"))
	}
	if !resp.Success {
		return c.Status(fiber.StatusForbidden).JSON(types.Err(fiber.StatusForbidden, resp.Message))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, resp.Message, nil))
}

// RequestOTP asks the collaborator to email a one-time passcode.
func (h *AuthController) RequestOTP(c *fiber.Ctx) error {
	var req authTypes.RequestOTPRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, err.Error()))
	}

	resp, err := h.backendClient.SendOTP(c.Context(), req.Email)
	if err != nil {
		logger.Error("sendOTP call failed", err)
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway, "Could not send the passcode"))
	}
	if !resp.Success {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, resp.Message))
	}

	logger.Success("OTP requested for " + req.Email)
	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, resp.Message, nil))
}

// VerifyOTP exchanges a valid passcode for a 24-hour portal session.
func (h *AuthController) VerifyOTP(c *fiber.Ctx) error {
	var req authTypes.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, err.Error()))
	}

	resp, err := h.backendClient.VerifyOTP(c.Context(), req.Email, req.OTP)
	if err != nil {
		logger.Error("verifyOTP call failed", err)
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway, "Could not verify the passcode"))
	}
	if !resp.Success {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, resp.Message))
	}

	token, err := h.sessions.Issue(req.Email)
	if err != nil {
		logger.Error("Failed to issue session", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to create session"))
	}

	logEntry := utils.CreateSanitizedLogEntry(c)
	h.loggerInstance.Log(logEntry)

	currentTime := time.Now().Format("2006-01-02 03:04:05 PM")
	logger.Success(fmt.Sprintf("Session issued for %s at %s", req.Email, currentTime))

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Verified",
		Token:   token,
		Data:    fiber.Map{"email": req.Email, "expiresIn": int(sessionService.TTL.Seconds())},
	})
}

// Logout revokes the caller's session.
func (h *AuthController) Logout(c *fiber.Ctx) error {
	tokenID, ok := c.Locals(middleware.LocalsTokenID).(string)
	if !ok || tokenID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active session"))
	}

	if err := h.sessions.Revoke(tokenID); err != nil {
		logger.Error("Failed to revoke session", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to log out"))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Logged out", nil))
}
