package orderflow

import (
	"fmt"

	"catalogue-order/types/order"
)

// SubmitInfoRequest carries the Info phase record.
type SubmitInfoRequest struct {
	UserInfo order.UserInfo `json:"userInfo" validate:"required"`
}

// SubmitPhase1Request carries the requirements record.
type SubmitPhase1Request struct {
	Phase1Data order.Phase1Data `json:"phase1Data" validate:"required"`
}

// SetQuantityRequest updates one product quantity in the working cart.
// CategoryID lets the flow load that category's products on first touch.
type SetQuantityRequest struct {
	CategoryID string `json:"categoryId" validate:"required,min=1,max=255"`
	ProductID  string `json:"productId" validate:"required,min=1,max=255"`
	Quantity   int    `json:"quantity" validate:"min=0"`
}

// EditPhaseRequest reopens an already-submitted phase for editing.
type EditPhaseRequest struct {
	Phase string `json:"phase" validate:"required,oneof=info phase1 phase2"`
}

// ResumeRequest initializes the flow from a shareable edit token.
type ResumeRequest struct {
	Token string `json:"token" validate:"required,min=1"`
	Email string `json:"email" validate:"omitempty,max=255"`
}

func (r SetQuantityRequest) Validate() error {
	if r.CategoryID == "" {
		return fmt.Errorf("categoryId is required")
	}
	if r.ProductID == "" {
		return fmt.Errorf("productId is required")
	}
	if r.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	return nil
}

func (r EditPhaseRequest) Validate() error {
	switch r.Phase {
	case "info", "phase1", "phase2":
		return nil
	}
	return fmt.Errorf("phase must be one of 'info', 'phase1' or 'phase2'")
}

func (r ResumeRequest) Validate() error {
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}
