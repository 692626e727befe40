package orderflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"catalogue-order/httpServices/backend"
	"catalogue-order/logger"
	"catalogue-order/services/catalogue"
	"catalogue-order/types/order"
	"catalogue-order/validation"
)

// Phase is one sequential step of the intake flow.
type Phase string

const (
	PhaseInfo           Phase = "info"
	PhasePhase1         Phase = "phase1"
	PhasePhase2         Phase = "phase2"
	PhaseAwaitingPhase2 Phase = "awaiting_phase2"
	PhaseConfirmed      Phase = "confirmed"
)

// Totals modes. Exactly one shape is active per deployment.
const (
	TotalsModeFlat = "flat"
	TotalsModeTax  = "tax"
)

var (
	// ErrSubmissionInFlight guards against double submits of one phase.
	ErrSubmissionInFlight = errors.New("a submission for this phase is already in flight")
	// ErrNoLineItems rejects a final submission with an empty cart.
	ErrNoLineItems = errors.New("select at least one item before submitting")
	// ErrOrderNotReady rejects a final submission while product selection is
	// not open: both earlier phases must be submitted and the flag on.
	ErrOrderNotReady = errors.New("order is not ready for final submission")
	// ErrPhaseNotSubmitted rejects reopening a phase that was never submitted.
	ErrPhaseNotSubmitted = errors.New("phase has not been submitted yet")
	// ErrUnknownProduct rejects a quantity for a product whose category has
	// not been loaded into this flow.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrResumeFailed is a blocking failure: the form must not silently
	// fall back to a fresh empty order.
	ErrResumeFailed = errors.New("could not load the order for this edit link")
)

// Config selects the totals shape for this deployment.
type Config struct {
	TotalsMode string
	TaxRate    float64
}

// Snapshot is the serializable flow state persisted between requests.
type Snapshot struct {
	Phase           Phase             `json:"phase"`
	InfoSubmitted   bool              `json:"infoSubmitted"`
	Phase1Submitted bool              `json:"phase1Submitted"`
	Confirmed       bool              `json:"confirmed"`
	EditMode        bool              `json:"editMode"`
	Phase2Enabled   bool              `json:"phase2Enabled"`
	OrderID         string            `json:"orderId,omitempty"`
	EditToken       string            `json:"editToken,omitempty"`
	UserInfo        order.UserInfo    `json:"userInfo"`
	Phase1Data      *order.Phase1Data `json:"phase1Data,omitempty"`
	Quantities      map[string]int    `json:"quantities"`
	ProductIndex    map[string]string `json:"productIndex"`
}

// loadedCategory is one category whose products are registered with the
// flow, in backend order.
type loadedCategory struct {
	id       string
	name     string
	products []order.Product
}

// Controller owns phase progression, read-only gating per phase, backend
// sync of partial submissions, edit-token resume and line item math.
//
// The phase records double as the pending edit buffer: drafts land in them
// on every change, but a phase's submitted flag only flips once the backend
// confirmed the write, so a failed call leaves the buffer intact for
// resubmission.
type Controller struct {
	cfg    Config
	client *backend.Client
	loader catalogue.Loader

	phase           Phase
	infoSubmitted   bool
	phase1Submitted bool
	confirmed       bool
	editMode        bool
	phase2Enabled   bool

	orderID   string
	editToken string

	userInfo   order.UserInfo
	phase1Data *order.Phase1Data
	quantities map[string]int

	categories   []loadedCategory
	productIndex map[string]string // productID -> categoryID

	submitting map[Phase]bool
}

// New returns a controller in the initial state: phase INFO, nothing
// submitted, empty records, catalogue not loaded.
func New(client *backend.Client, loader catalogue.Loader, cfg Config) *Controller {
	if cfg.TotalsMode == "" {
		cfg.TotalsMode = TotalsModeFlat
	}
	return &Controller{
		cfg:          cfg,
		client:       client,
		loader:       loader,
		phase:        PhaseInfo,
		quantities:   make(map[string]int),
		productIndex: make(map[string]string),
		submitting:   make(map[Phase]bool),
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// InfoSubmitted reports whether the Info phase is committed.
func (c *Controller) InfoSubmitted() bool { return c.infoSubmitted }

// Phase1Submitted reports whether Phase 1 is committed.
func (c *Controller) Phase1Submitted() bool { return c.phase1Submitted }

// Phase2Enabled reports the last known server feature flag.
func (c *Controller) Phase2Enabled() bool { return c.phase2Enabled }

// EditMode reports whether the flow was initialized from an edit token.
func (c *Controller) EditMode() bool { return c.editMode }

// OrderID returns the server-issued order identifier, if any.
func (c *Controller) OrderID() string { return c.orderID }

// EditToken returns the opaque resume credential, if any.
func (c *Controller) EditToken() string { return c.editToken }

// UserInfo returns the current Info record (committed or pending).
func (c *Controller) UserInfo() order.UserInfo { return c.userInfo }

// Phase1Data returns the current requirements record, nil before first edit.
func (c *Controller) Phase1Data() *order.Phase1Data {
	if c.phase1Data == nil {
		return nil
	}
	copied := *c.phase1Data
	return &copied
}

// Quantities returns a copy of the quantities map.
func (c *Controller) Quantities() map[string]int {
	out := make(map[string]int, len(c.quantities))
	for id, qty := range c.quantities {
		out[id] = qty
	}
	return out
}

// RefreshSettings pulls the feature flags from the backend. A failure keeps
// the last known flag rather than blocking the flow.
func (c *Controller) RefreshSettings(ctx context.Context) {
	resp, err := c.client.GetSettings(ctx)
	if err != nil {
		logger.Warning(fmt.Sprintf("getSettings failed, keeping phase2Enabled=%v: %v", c.phase2Enabled, err))
		return
	}
	c.phase2Enabled = resp.Settings.Phase2Enabled
}

// UpdateInfoDraft stores the pending Info record and returns live
// validation errors. It never blocks progression by itself.
func (c *Controller) UpdateInfoDraft(info order.UserInfo) validation.Errors {
	c.userInfo = info
	return validation.ValidateUserInfo(info)
}

// UpdatePhase1Draft stores the pending requirements record and returns live
// validation errors.
func (c *Controller) UpdatePhase1Draft(data order.Phase1Data) validation.Errors {
	c.phase1Data = &data
	return validation.ValidatePhase1(data)
}

// SubmitInfo validates and persists the Info phase. On the first submission
// the backend issues the orderId and editToken, which are captured here and
// scope every later call. Field errors block the call; a transport error
// leaves the pending record and submitted flag untouched.
func (c *Controller) SubmitInfo(ctx context.Context, info order.UserInfo) (validation.Errors, error) {
	c.userInfo = info

	if errs := validation.ValidateUserInfo(info); len(errs) > 0 {
		return errs, nil
	}

	if c.submitting[PhaseInfo] {
		return nil, ErrSubmissionInFlight
	}
	c.submitting[PhaseInfo] = true
	defer func() { c.submitting[PhaseInfo] = false }()

	if err := c.persist(ctx, "info"); err != nil {
		return nil, err
	}

	c.infoSubmitted = true
	c.advance()
	return nil, nil
}

// SubmitPhase1 validates and persists the requirements phase, then advances
// to product selection or, while the feature flag is off, to the awaiting
// state.
func (c *Controller) SubmitPhase1(ctx context.Context, data order.Phase1Data) (validation.Errors, error) {
	c.phase1Data = &data

	if errs := validation.ValidatePhase1(data); len(errs) > 0 {
		return errs, nil
	}

	if c.submitting[PhasePhase1] {
		return nil, ErrSubmissionInFlight
	}
	c.submitting[PhasePhase1] = true
	defer func() { c.submitting[PhasePhase1] = false }()

	// The flag is authoritative at the transition, not at page load.
	c.RefreshSettings(ctx)

	if err := c.persist(ctx, "phase1"); err != nil {
		return nil, err
	}

	c.phase1Submitted = true
	c.advance()
	return nil, nil
}

// SubmitOrder persists the final payload with line items and totals. Only
// reachable from the product selection phase, and requires at least one
// selected item.
func (c *Controller) SubmitOrder(ctx context.Context) error {
	if c.phase != PhasePhase2 {
		return ErrOrderNotReady
	}

	items := c.LineItems()
	if len(items) == 0 {
		return ErrNoLineItems
	}

	if c.submitting[PhasePhase2] {
		return ErrSubmissionInFlight
	}
	c.submitting[PhasePhase2] = true
	defer func() { c.submitting[PhasePhase2] = false }()

	if err := c.persist(ctx, "final"); err != nil {
		return err
	}

	c.confirmed = true
	c.phase = PhaseConfirmed
	return nil
}

// EnsureCategoryLoaded fetches one category's products (cache hit after the
// first call) and registers them with the flow so quantities and line items
// can resolve against real product data.
func (c *Controller) EnsureCategoryLoaded(ctx context.Context, categoryID, categoryName string) ([]order.Product, error) {
	for _, cat := range c.categories {
		if cat.id == categoryID {
			return cat.products, nil
		}
	}

	products, err := c.loader.ListProducts(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	c.categories = append(c.categories, loadedCategory{id: categoryID, name: categoryName, products: products})
	for _, p := range products {
		c.productIndex[p.ID] = categoryID
	}
	return products, nil
}

// SetQuantity updates one product's selected quantity. The product's
// category must have been loaded first.
func (c *Controller) SetQuantity(productID string, quantity int) error {
	if _, ok := c.productIndex[productID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	if quantity <= 0 {
		delete(c.quantities, productID)
		return nil
	}
	c.quantities[productID] = quantity
	return nil
}

// LineItems regenerates the derived order lines from the quantities map and
// currently loaded product data. Never hand-maintained state.
func (c *Controller) LineItems() []order.OrderLineItem {
	items := []order.OrderLineItem{}
	for _, cat := range c.categories {
		for _, product := range cat.products {
			quantity := c.quantities[product.ID]
			if quantity <= 0 {
				continue
			}
			items = append(items, order.OrderLineItem{
				CategoryID:   cat.id,
				CategoryName: cat.name,
				ProductID:    product.ID,
				ProductName:  product.Name,
				UnitPrice:    product.UnitPrice,
				Quantity:     quantity,
				LineTotal:    float64(quantity) * product.UnitPrice,
				Size:         product.Size,
				Supplier:     product.Supplier,
			})
		}
	}
	return items
}

// Totals computes the configured totals shape over the given line items.
func (c *Controller) Totals(items []order.OrderLineItem) order.OrderTotals {
	var sum float64
	for _, item := range items {
		sum += item.LineTotal
	}

	if c.cfg.TotalsMode == TotalsModeTax {
		taxRate := c.cfg.TaxRate
		taxAmount := sum * taxRate
		grandTotal := sum + taxAmount
		return order.OrderTotals{
			Subtotal:   &sum,
			TaxRate:    &taxRate,
			TaxAmount:  &taxAmount,
			GrandTotal: &grandTotal,
		}
	}

	return order.OrderTotals{Total: &sum}
}

// EditPhase reopens an already-submitted phase. Later submitted phases stay
// submitted; resubmitting the reopened phase issues another update and the
// pointer returns forward.
func (c *Controller) EditPhase(p Phase) error {
	switch p {
	case PhaseInfo:
		if !c.infoSubmitted {
			return ErrPhaseNotSubmitted
		}
	case PhasePhase1:
		if !c.phase1Submitted {
			return ErrPhaseNotSubmitted
		}
	case PhasePhase2:
		if !c.phase1Submitted || !c.phase2Enabled {
			return ErrPhaseNotSubmitted
		}
	default:
		return fmt.Errorf("cannot reopen phase %q", p)
	}
	c.phase = p
	return nil
}

// Reset returns the flow to its initial state ("create another order").
func (c *Controller) Reset() {
	c.phase = PhaseInfo
	c.infoSubmitted = false
	c.phase1Submitted = false
	c.confirmed = false
	c.editMode = false
	c.orderID = ""
	c.editToken = ""
	c.userInfo = order.UserInfo{}
	c.phase1Data = nil
	c.quantities = make(map[string]int)
	c.categories = nil
	c.productIndex = make(map[string]string)
}

// ResumeFromToken initializes the flow from a shareable edit token instead
// of starting empty. A failed load is a blocking error: the prior
// submission context must not be silently discarded.
func (c *Controller) ResumeFromToken(ctx context.Context, token, email string) error {
	resp, err := c.client.GetOrderByToken(ctx, token, email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResumeFailed, err)
	}
	if !resp.Success || resp.Order == nil {
		msg := resp.Message
		if msg == "" {
			msg = "invalid or expired edit link"
		}
		return fmt.Errorf("%w: %s", ErrResumeFailed, msg)
	}

	stored := resp.Order

	c.editMode = true
	c.editToken = token
	if stored.EditToken != "" {
		c.editToken = stored.EditToken
	}
	c.orderID = stored.OrderID

	c.userInfo = stored.UserInfo
	c.infoSubmitted = true

	if stored.Phase1Data != nil {
		data := *stored.Phase1Data
		c.phase1Data = &data
		c.phase1Submitted = true
	}

	if stored.Settings != nil {
		c.phase2Enabled = stored.Settings.Phase2Enabled
	} else {
		c.RefreshSettings(ctx)
	}

	c.quantities = make(map[string]int)
	for _, item := range stored.LineItems {
		if item.Quantity > 0 {
			c.quantities[item.ProductID] = item.Quantity
		}
	}

	// Eagerly load only the categories the existing line items reference,
	// so the cart can render before any category tab is opened.
	referenced := map[string]string{}
	var ids []string
	for _, item := range stored.LineItems {
		if _, seen := referenced[item.CategoryID]; !seen {
			ids = append(ids, item.CategoryID)
		}
		referenced[item.CategoryID] = item.CategoryName
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := c.EnsureCategoryLoaded(ctx, id, referenced[id]); err != nil {
			// Scoped: the rest of the cart still renders.
			logger.Warning(fmt.Sprintf("eager product load failed for category %s: %v", id, err))
		}
	}

	if c.phase1Data == nil {
		c.phase = PhasePhase1
	} else if c.phase2Enabled {
		c.phase = PhasePhase2
	} else {
		// Phase 1 already submitted and product selection closed: stay on
		// the read-only Phase 1 view.
		c.phase = PhasePhase1
	}

	return nil
}

// Snapshot serializes the flow state for persistence between requests.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:           c.phase,
		InfoSubmitted:   c.infoSubmitted,
		Phase1Submitted: c.phase1Submitted,
		Confirmed:       c.confirmed,
		EditMode:        c.editMode,
		Phase2Enabled:   c.phase2Enabled,
		OrderID:         c.orderID,
		EditToken:       c.editToken,
		UserInfo:        c.userInfo,
		Quantities:      c.Quantities(),
		ProductIndex:    make(map[string]string, len(c.productIndex)),
	}
	if c.phase1Data != nil {
		data := *c.phase1Data
		snap.Phase1Data = &data
	}
	for id, cat := range c.productIndex {
		snap.ProductIndex[id] = cat
	}
	return snap
}

// Restore loads a persisted snapshot into a fresh controller.
func (c *Controller) Restore(snap Snapshot) {
	c.phase = snap.Phase
	if c.phase == "" {
		c.phase = PhaseInfo
	}
	c.infoSubmitted = snap.InfoSubmitted
	c.phase1Submitted = snap.Phase1Submitted
	c.confirmed = snap.Confirmed
	c.editMode = snap.EditMode
	c.phase2Enabled = snap.Phase2Enabled
	c.orderID = snap.OrderID
	c.editToken = snap.EditToken
	c.userInfo = snap.UserInfo
	c.phase1Data = nil
	if snap.Phase1Data != nil {
		data := *snap.Phase1Data
		c.phase1Data = &data
	}
	c.quantities = make(map[string]int, len(snap.Quantities))
	for id, qty := range snap.Quantities {
		c.quantities[id] = qty
	}
	c.productIndex = make(map[string]string, len(snap.ProductIndex))
	for id, cat := range snap.ProductIndex {
		c.productIndex[id] = cat
	}
}

// Rehydrate reloads product data for every category the flow references.
// Cache hits make this cheap on every request after the first.
func (c *Controller) Rehydrate(ctx context.Context) {
	referenced := map[string]bool{}
	var ids []string
	for _, categoryID := range c.productIndex {
		if !referenced[categoryID] {
			referenced[categoryID] = true
			ids = append(ids, categoryID)
		}
	}
	sort.Strings(ids)

	var summaries []backend.CategorySummary
	if len(ids) > 0 {
		loaded, err := c.loader.ListCategories(ctx)
		if err == nil {
			summaries = loaded
		}
	}

	for _, id := range ids {
		name := id
		for _, s := range summaries {
			if s.ID == id {
				name = s.Name
				break
			}
		}
		if _, err := c.EnsureCategoryLoaded(ctx, id, name); err != nil {
			logger.Warning(fmt.Sprintf("rehydrate failed for category %s: %v", id, err))
		}
	}
}

// persist issues the create-or-update call for the current flow state. The
// first write creates the order; once an identifier exists every later
// write is an update scoped by it and the edit token.
func (c *Controller) persist(ctx context.Context, emailType string) error {
	payload := c.buildPayload(emailType)

	if c.orderID == "" {
		resp, err := c.client.CreateOrder(ctx, payload)
		if err != nil {
			return err
		}
		// Capture immediately: later phase submissions re-use these.
		c.orderID = resp.OrderID
		if resp.EditToken != "" {
			c.editToken = resp.EditToken
		}
		return nil
	}

	resp, err := c.client.UpdateOrder(ctx, c.orderID, c.editToken, payload)
	if err != nil {
		return err
	}
	if resp.EditToken != "" {
		c.editToken = resp.EditToken
	}
	return nil
}

func (c *Controller) buildPayload(emailType string) order.OrderPayload {
	items := c.LineItems()
	payload := order.OrderPayload{
		UserInfo:  c.userInfo,
		LineItems: items,
		Totals:    c.Totals(items),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		EmailType: emailType,
	}
	if c.phase1Data != nil {
		data := *c.phase1Data
		payload.Phase1Data = &data
	}
	return payload
}

// advance moves the pointer forward to the furthest reachable phase after a
// successful submission, also covering resubmits of a reopened phase.
func (c *Controller) advance() {
	switch {
	case c.confirmed:
		// A reopened phase resubmitted after final confirmation stays
		// confirmed; the update call already went out.
		c.phase = PhaseConfirmed
	case c.phase1Submitted && c.phase2Enabled:
		c.phase = PhasePhase2
	case c.phase1Submitted:
		c.phase = PhaseAwaitingPhase2
	case c.infoSubmitted:
		c.phase = PhasePhase1
	}
}
