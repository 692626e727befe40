package auth

import "fmt"

// CheckEmailRequest asks the auth collaborator whether an email may order.
type CheckEmailRequest struct {
	Email string `json:"email" validate:"required,max=255"`
}

// RequestOTPRequest asks the collaborator to email a one-time passcode.
type RequestOTPRequest struct {
	Email string `json:"email" validate:"required,max=255"`
}

// VerifyOTPRequest exchanges a passcode for a portal session.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,max=255"`
	OTP   string `json:"otp" validate:"required,min=4,max=10"`
}

func (r CheckEmailRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

func (r RequestOTPRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

func (r VerifyOTPRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if r.OTP == "" {
		return fmt.Errorf("otp is required")
	}
	return nil
}
