package backend

import "catalogue-order/types/order"

// CategorySummary is the lightweight {id,name} record returned by
// getCategories; products arrive separately per category.
type CategorySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Settings carries the server-controlled feature flags.
type Settings struct {
	Phase2Enabled bool `json:"phase2Enabled"`
}

// CategoriesResponse is the getCategories envelope.
type CategoriesResponse struct {
	Success    bool              `json:"success"`
	Categories []CategorySummary `json:"categories"`
	Message    string            `json:"message,omitempty"`
}

// ProductsResponse is the getProductsByCategory envelope.
type ProductsResponse struct {
	Success      bool            `json:"success"`
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	Products     []order.Product `json:"products"`
	Message      string          `json:"message,omitempty"`
}

// CatalogueResponse is the combined getCatalogue fallback envelope.
type CatalogueResponse struct {
	Success    bool             `json:"success"`
	Categories []order.Category `json:"categories"`
	Message    string           `json:"message,omitempty"`
}

// SettingsResponse is the getSettings envelope.
type SettingsResponse struct {
	Success  bool     `json:"success"`
	Settings Settings `json:"settings"`
	Message  string   `json:"message,omitempty"`
}

// OrderWriteResponse is returned by createOrder and updateOrder. A create
// response carries the server-issued identifier and edit token.
type OrderWriteResponse struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderId"`
	EditToken string `json:"editToken,omitempty"`
	Message   string `json:"message"`
}

// StoredOrder is the order record returned by getOrder/getOrderByToken.
type StoredOrder struct {
	order.OrderPayload
	OrderID   string    `json:"orderId,omitempty"`
	EditToken string    `json:"editToken,omitempty"`
	Settings  *Settings `json:"settings,omitempty"`
}

// OrderReadResponse is the getOrder/getOrderByToken envelope. Order is nil
// when the identifier or token did not match.
type OrderReadResponse struct {
	Success bool         `json:"success"`
	Order   *StoredOrder `json:"order"`
	Message string       `json:"message,omitempty"`
}

// AuthResponse is shared by the checkEmail/sendOTP/verifyOTP actions.
type AuthResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SessionToken string `json:"sessionToken,omitempty"`
	Email        string `json:"email,omitempty"`
}

type createOrderRequest struct {
	Action  string             `json:"action"`
	Payload order.OrderPayload `json:"payload"`
}

type updateOrderRequest struct {
	Action    string             `json:"action"`
	OrderID   string             `json:"orderId"`
	Payload   order.OrderPayload `json:"payload"`
	EditToken string             `json:"editToken,omitempty"`
}

type sendOTPRequest struct {
	Action string `json:"action"`
	Email  string `json:"email"`
}
