package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"catalogue-order/types/order"
)

// Client talks to the order backend: a single action-dispatched endpoint
// in front of the spreadsheet store. Reads are GET with an action query
// parameter, writes are POST with an action field in the body.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// GetCategories fetches the lightweight category list.
func (c *Client) GetCategories(ctx context.Context) (*CategoriesResponse, error) {
	var resp CategoriesResponse
	if err := c.get(ctx, url.Values{"action": {"getCategories"}}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("getCategories failed: %s", resp.Message)
	}
	return &resp, nil
}

// GetProductsByCategory fetches the full product records for one category.
func (c *Client) GetProductsByCategory(ctx context.Context, categoryID string) (*ProductsResponse, error) {
	var resp ProductsResponse
	params := url.Values{"action": {"getProductsByCategory"}, "categoryId": {categoryID}}
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("getProductsByCategory %s failed: %s", categoryID, resp.Message)
	}
	return &resp, nil
}

// GetCatalogue fetches categories and products in one call. Fallback path
// for when getCategories is unavailable.
func (c *Client) GetCatalogue(ctx context.Context) (*CatalogueResponse, error) {
	var resp CatalogueResponse
	if err := c.get(ctx, url.Values{"action": {"getCatalogue"}}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("getCatalogue failed: %s", resp.Message)
	}
	return &resp, nil
}

// GetSettings fetches the server-controlled feature flags.
func (c *Client) GetSettings(ctx context.Context) (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.get(ctx, url.Values{"action": {"getSettings"}}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("getSettings failed: %s", resp.Message)
	}
	return &resp, nil
}

// CreateOrder persists a new order. The returned orderId and editToken must
// be captured by the caller; they scope every later update.
func (c *Client) CreateOrder(ctx context.Context, payload order.OrderPayload) (*OrderWriteResponse, error) {
	var resp OrderWriteResponse
	if err := c.post(ctx, createOrderRequest{Action: "createOrder", Payload: payload}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("createOrder failed: %s", resp.Message)
	}
	return &resp, nil
}

// UpdateOrder overwrites an existing order, scoped by id and edit token.
func (c *Client) UpdateOrder(ctx context.Context, orderID, editToken string, payload order.OrderPayload) (*OrderWriteResponse, error) {
	body := updateOrderRequest{
		Action:    "updateOrder",
		OrderID:   orderID,
		Payload:   payload,
		EditToken: editToken,
	}
	var resp OrderWriteResponse
	if err := c.post(ctx, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("updateOrder failed: %s", resp.Message)
	}
	return &resp, nil
}

// GetOrder fetches an order by its identifier.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*OrderReadResponse, error) {
	var resp OrderReadResponse
	params := url.Values{"action": {"getOrder"}, "orderId": {orderID}}
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetOrderByToken fetches an order by its edit token. The optional email
// narrows the lookup on deployments that require it.
func (c *Client) GetOrderByToken(ctx context.Context, token, email string) (*OrderReadResponse, error) {
	params := url.Values{"action": {"getOrderByToken"}, "token": {token}}
	if email != "" {
		params.Set("email", email)
	}
	var resp OrderReadResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckEmail asks whether the email is on the order whitelist.
func (c *Client) CheckEmail(ctx context.Context, email string) (*AuthResponse, error) {
	var resp AuthResponse
	params := url.Values{"action": {"checkEmail"}, "email": {email}}
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendOTP asks the collaborator to email a one-time passcode.
func (c *Client) SendOTP(ctx context.Context, email string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, sendOTPRequest{Action: "sendOTP", Email: email}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyOTP checks the passcode the user received.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*AuthResponse, error) {
	var resp AuthResponse
	params := url.Values{"action": {"verifyOTP"}, "email": {email}, "otp": {otp}}
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("backend returned non-OK status: " + resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, body interface{}, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(encoded))
	if err != nil {
		return err
	}
	// The spreadsheet gateway rejects preflighted content types, so writes
	// go out as text/plain with a JSON body.
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("backend returned non-OK status: " + resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
