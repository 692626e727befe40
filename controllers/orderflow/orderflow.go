package orderflow

import (
	"errors"
	"fmt"
	"sync"

	"catalogue-order/httpServices/backend"
	"catalogue-order/logger"
	"catalogue-order/middleware"
	catalogueService "catalogue-order/services/catalogue"
	flow "catalogue-order/services/orderflow"
	"catalogue-order/types"
	"catalogue-order/types/order"
	orderflowTypes "catalogue-order/types/orderflow"
	"catalogue-order/utils"

	"github.com/gofiber/fiber/v2"
)

// FlowController exposes the order flow state machine over HTTP. Flow
// state is loaded from the store per request, mutated through the service
// controller and saved back, keyed by the login session or edit token.
type FlowController struct {
	backendClient  *backend.Client
	loader         catalogueService.Loader
	store          *flow.Store
	cfg            flow.Config
	loggerInstance *logger.AsyncLogger

	// inflight guards each (flow, phase) pair against double submits
	// across concurrent requests.
	inflight sync.Map
}

// NewFlowController creates a new flow controller
func NewFlowController(backendClient *backend.Client, loader catalogueService.Loader, store *flow.Store, cfg flow.Config, asyncLogger *logger.AsyncLogger) *FlowController {
	return &FlowController{
		backendClient:  backendClient,
		loader:         loader,
		store:          store,
		cfg:            cfg,
		loggerInstance: asyncLogger,
	}
}

// stateResponse is the flow state as the presentation layer consumes it.
type stateResponse struct {
	Phase           flow.Phase            `json:"phase"`
	InfoSubmitted   bool                  `json:"infoSubmitted"`
	Phase1Submitted bool                  `json:"phase1Submitted"`
	Phase2Enabled   bool                  `json:"phase2Enabled"`
	EditMode        bool                  `json:"editMode"`
	OrderID         string                `json:"orderId,omitempty"`
	EditToken       string                `json:"editToken,omitempty"`
	UserInfo        order.UserInfo        `json:"userInfo"`
	Phase1Data      *order.Phase1Data     `json:"phase1Data,omitempty"`
	Quantities      map[string]int        `json:"quantities"`
	LineItems       []order.OrderLineItem `json:"lineItems"`
	Totals          order.OrderTotals     `json:"totals"`
}

func buildState(ctrl *flow.Controller) stateResponse {
	items := ctrl.LineItems()
	return stateResponse{
		Phase:           ctrl.Phase(),
		InfoSubmitted:   ctrl.InfoSubmitted(),
		Phase1Submitted: ctrl.Phase1Submitted(),
		Phase2Enabled:   ctrl.Phase2Enabled(),
		EditMode:        ctrl.EditMode(),
		OrderID:         ctrl.OrderID(),
		EditToken:       ctrl.EditToken(),
		UserInfo:        ctrl.UserInfo(),
		Phase1Data:      ctrl.Phase1Data(),
		Quantities:      ctrl.Quantities(),
		LineItems:       items,
		Totals:          ctrl.Totals(items),
	}
}

// flowKey resolves which flow snapshot this request operates on.
func flowKey(c *fiber.Ctx) (string, error) {
	if token, ok := c.Locals(middleware.LocalsEditMode).(string); ok && token != "" {
		return flow.EditKey(token), nil
	}
	if tokenID, ok := c.Locals(middleware.LocalsTokenID).(string); ok && tokenID != "" {
		return "session:" + tokenID, nil
	}
	return "", errors.New("no session or edit token on request")
}

// loadController restores (or initializes) the flow for this request.
func (h *FlowController) loadController(c *fiber.Ctx, key string) (*flow.Controller, error) {
	ctrl := flow.New(h.backendClient, h.loader, h.cfg)

	snap, found, err := h.store.Load(key)
	if err != nil {
		return nil, err
	}
	if found {
		ctrl.Restore(snap)
		ctrl.Rehydrate(c.Context())
	} else {
		ctrl.RefreshSettings(c.Context())
	}
	return ctrl, nil
}

func (h *FlowController) save(key string, ctrl *flow.Controller) error {
	return h.store.Save(key, ctrl.Snapshot())
}

// acquire takes the double-submit guard for one (flow, phase) pair.
func (h *FlowController) acquire(key string, phase flow.Phase) bool {
	_, loaded := h.inflight.LoadOrStore(key+"|"+string(phase), struct{}{})
	return !loaded
}

func (h *FlowController) release(key string, phase flow.Phase) {
	h.inflight.Delete(key + "|" + string(phase))
}

// GetState returns the current flow state.
func (h *FlowController) GetState(c *fiber.Ctx) error {
	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}

	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Flow state", buildState(ctrl)))
}

// SaveInfoDraft stores the pending Info record and returns live field
// errors. Drafting never blocks progression by itself.
func (h *FlowController) SaveInfoDraft(c *fiber.Ctx) error {
	var req orderflowTypes.SubmitInfoRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}

	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}
	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	fieldErrors := ctrl.UpdateInfoDraft(req.UserInfo)
	if err := h.save(key, ctrl); err != nil {
		logger.Error("Failed to save flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to save flow state"))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Draft saved", fiber.Map{
		"errors": fieldErrors,
		"state":  buildState(ctrl),
	}))
}

// SubmitInfo validates and persists the Info phase.
func (h *FlowController) SubmitInfo(c *fiber.Ctx) error {
	var req orderflowTypes.SubmitInfoRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}

	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}

	if !h.acquire(key, flow.PhaseInfo) {
		return c.Status(fiber.StatusConflict).JSON(types.Err(fiber.StatusConflict, "A submission is already in flight"))
	}
	defer h.release(key, flow.PhaseInfo)

	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	fieldErrors, err := ctrl.SubmitInfo(c.Context(), req.UserInfo)
	if len(fieldErrors) > 0 {
		// Keep the pending buffer so the user can fix and resubmit.
		if saveErr := h.save(key, ctrl); saveErr != nil {
			logger.Error("Failed to save flow state", saveErr)
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(types.Ok(
			fiber.StatusUnprocessableEntity, "Validation failed", fiber.Map{"errors": fieldErrors}))
	}
	if err != nil {
		logger.Error("Info submission failed", err)
		if saveErr := h.save(key, ctrl); saveErr != nil {
			logger.Error("Failed to save flow state", saveErr)
		}
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway, "Could not save your details, please retry"))
	}

	if err := h.save(key, ctrl); err != nil {
		logger.Error("Failed to save flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to save flow state"))
	}

	logEntry := utils.CreateSanitizedLogEntry(c)
	h.loggerInstance.Log(logEntry)

	logger.Success(fmt.Sprintf("Info phase submitted, order %s", ctrl.OrderID()))
	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Contact details saved", buildState(ctrl)))
}

// SavePhase1Draft stores the pending requirements record with live errors.
func (h *FlowController) SavePhase1Draft(c *fiber.Ctx) error {
	var req orderflowTypes.SubmitPhase1Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}

	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}
	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	fieldErrors := ctrl.UpdatePhase1Draft(req.Phase1Data)
	if err := h.save(key, ctrl); err != nil {
		logger.Error("Failed to save flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to save flow state"))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Draft saved", fiber.Map{
		"errors": fieldErrors,
		"state":  buildState(ctrl),
	}))
}

// SubmitPhase1 validates and persists the requirements phase.
func (h *FlowController) SubmitPhase1(c *fiber.Ctx) error {
	var req orderflowTypes.SubmitPhase1Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}

	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}

	if !h.acquire(key, flow.PhasePhase1) {
		return c.Status(fiber.StatusConflict).JSON(types.Err(fiber.StatusConflict, "A submission is already in flight"))
	}
	defer h.release(key, flow.PhasePhase1)

	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	if !ctrl.InfoSubmitted() {
		return c.Status(fiber.StatusConflict).JSON(types.Err(fiber.StatusConflict, "Submit your contact details first"))
	}

	fieldErrors, err := ctrl.SubmitPhase1(c.Context(), req.Phase1Data)
	if len(fieldErrors) > 0 {
		if saveErr := h.save(key, ctrl); saveErr != nil {
			logger.Error("Failed to save flow state", saveErr)
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(types.Ok(
			fiber.StatusUnprocessableEntity, "Validation failed", fiber.Map{"errors": fieldErrors}))
	}
	if err != nil {
		logger.Error("Phase 1 submission failed", err)
		if saveErr := h.save(key, ctrl); saveErr != nil {
			logger.Error("Failed to save flow state", saveErr)
		}
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway, "Could not save your requirements, please retry"))
	}

	if err := h.save(key, ctrl); err != nil {
		logger.Error("Failed to save flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to save flow state"))
	}

	logEntry := utils.CreateSanitizedLogEntry(c)
	h.loggerInstance.Log(logEntry)

	logger.Success(fmt.Sprintf("Phase 1 submitted, order %s", ctrl.OrderID()))
	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Requirements saved", buildState(ctrl)))
}

// SetQuantity updates one product's quantity in the working cart.
func (h *FlowController) SetQuantity(c *fiber.Ctx) error {
	var req orderflowTypes.SetQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, err.Error()))
	}

	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}
	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	categoryName := req.CategoryID
	if summaries, err := h.loader.ListCategories(c.Context()); err == nil {
		for _, s := range summaries {
			if s.ID == req.CategoryID {
				categoryName = s.Name
				break
			}
		}
	}

	if _, err := ctrl.EnsureCategoryLoaded(c.Context(), req.CategoryID, categoryName); err != nil {
		logger.Error("Failed to load category products", err)
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway,
			fmt.Sprintf("Products for category %s are unavailable right now", req.CategoryID)))
	}

	if err := ctrl.SetQuantity(req.ProductID, req.Quantity); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, err.Error()))
	}

	if err := h.save(key, ctrl); err != nil {
		logger.Error("Failed to save flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to save flow state"))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Quantity updated", buildState(ctrl)))
}

// SubmitOrder persists the final payload. Requires at least one line item.
func (h *FlowController) SubmitOrder(c *fiber.Ctx) error {
	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}

	if !h.acquire(key, flow.PhasePhase2) {
		return c.Status(fiber.StatusConflict).JSON(types.Err(fiber.StatusConflict, "A submission is already in flight"))
	}
	defer h.release(key, flow.PhasePhase2)

	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	if err := ctrl.SubmitOrder(c.Context()); err != nil {
		if errors.Is(err, flow.ErrOrderNotReady) {
			return c.Status(fiber.StatusConflict).JSON(types.Err(fiber.StatusConflict, "Product selection is not open for this order yet"))
		}
		if errors.Is(err, flow.ErrNoLineItems) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(types.Ok(
				fiber.StatusUnprocessableEntity, "Validation failed",
				fiber.Map{"errors": fiber.Map{"lineItems": "Select at least one item"}}))
		}
		logger.Error("Final submission failed", err)
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway, "Could not submit your order, please retry"))
	}

	if err := h.save(key, ctrl); err != nil {
		logger.Error("Failed to save flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to save flow state"))
	}

	logEntry := utils.CreateSanitizedLogEntry(c)
	h.loggerInstance.Log(logEntry)

	logger.Success(fmt.Sprintf("Order %s confirmed", ctrl.OrderID()))
	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Order submitted", buildState(ctrl)))
}

// GetOrder returns the authoritative stored order record for this flow,
// re-fetched from the backend. Serves the confirmation receipt view.
func (h *FlowController) GetOrder(c *fiber.Ctx) error {
	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}
	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	if ctrl.OrderID() == "" {
		return c.Status(fiber.StatusNotFound).JSON(types.Err(fiber.StatusNotFound, "No order has been created yet"))
	}

	resp, err := h.backendClient.GetOrder(c.Context(), ctrl.OrderID())
	if err != nil {
		logger.Error("Failed to fetch stored order", err)
		return c.Status(fiber.StatusBadGateway).JSON(types.Err(fiber.StatusBadGateway, "Could not load the stored order"))
	}
	if !resp.Success || resp.Order == nil {
		return c.Status(fiber.StatusNotFound).JSON(types.Err(fiber.StatusNotFound, "Order not found"))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Stored order", fiber.Map{
		"order": resp.Order,
	}))
}

// EditPhase reopens an already-submitted phase for editing.
func (h *FlowController) EditPhase(c *fiber.Ctx) error {
	var req orderflowTypes.EditPhaseRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, err.Error()))
	}

	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}
	ctrl, err := h.loadController(c, key)
	if err != nil {
		logger.Error("Failed to load flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to load flow state"))
	}

	if err := ctrl.EditPhase(flow.Phase(req.Phase)); err != nil {
		return c.Status(fiber.StatusConflict).JSON(types.Err(fiber.StatusConflict, err.Error()))
	}

	if err := h.save(key, ctrl); err != nil {
		logger.Error("Failed to save flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to save flow state"))
	}

	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Phase reopened", buildState(ctrl)))
}

// Reset discards the flow and starts a fresh order.
func (h *FlowController) Reset(c *fiber.Ctx) error {
	key, err := flowKey(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.Err(fiber.StatusUnauthorized, "No active flow"))
	}

	if err := h.store.Delete(key); err != nil {
		logger.Error("Failed to delete flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to reset"))
	}

	ctrl := flow.New(h.backendClient, h.loader, h.cfg)
	ctrl.RefreshSettings(c.Context())
	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Flow reset", buildState(ctrl)))
}

// Resume initializes a flow from a shareable edit token. A failed load is
// a blocking error; the caller must not be handed a fresh empty order.
func (h *FlowController) Resume(c *fiber.Ctx) error {
	var req orderflowTypes.ResumeRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, "Invalid request body"))
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.Err(fiber.StatusBadRequest, err.Error()))
	}

	key := flow.EditKey(req.Token)
	ctrl := flow.New(h.backendClient, h.loader, h.cfg)

	if err := ctrl.ResumeFromToken(c.Context(), req.Token, req.Email); err != nil {
		logger.Error("Edit-token resume failed", err)
		return c.Status(fiber.StatusNotFound).JSON(types.Err(fiber.StatusNotFound,
			"This edit link is invalid or has expired. Your previous submission was not changed."))
	}

	if err := h.save(key, ctrl); err != nil {
		logger.Error("Failed to save flow state", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.Err(fiber.StatusInternalServerError, "Failed to save flow state"))
	}

	logEntry := utils.CreateSanitizedLogEntry(c)
	h.loggerInstance.Log(logEntry)

	logger.Success(fmt.Sprintf("Flow resumed for order %s", ctrl.OrderID()))
	return c.Status(fiber.StatusOK).JSON(types.Ok(fiber.StatusOK, "Order loaded", buildState(ctrl)))
}
