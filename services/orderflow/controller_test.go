package orderflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"catalogue-order/cache"
	"catalogue-order/httpServices/backend"
	"catalogue-order/services/catalogue"
	"catalogue-order/types/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway emulates the action-dispatched order backend.
type fakeGateway struct {
	mu sync.Mutex

	phase2Enabled bool
	failWrites    bool
	failSettings  bool

	createCalls int
	updateCalls int

	lastPayload   order.OrderPayload
	lastOrderID   string
	lastEditToken string

	storedOrder *backend.StoredOrder
}

func (f *fakeGateway) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodGet {
			f.handleGet(w, r)
			return
		}
		f.handlePost(w, r)
	}
}

func (f *fakeGateway) handleGet(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "getSettings":
		if f.failSettings {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(backend.SettingsResponse{
			Success:  true,
			Settings: backend.Settings{Phase2Enabled: f.phase2Enabled},
		})
	case "getCategories":
		json.NewEncoder(w).Encode(backend.CategoriesResponse{
			Success: true,
			Categories: []backend.CategorySummary{
				{ID: "cat1", Name: "Stands"},
				{ID: "cat2", Name: "Lighting"},
			},
		})
	case "getProductsByCategory":
		switch r.URL.Query().Get("categoryId") {
		case "cat1":
			json.NewEncoder(w).Encode(backend.ProductsResponse{
				Success: true,
				Products: []order.Product{
					{ID: "p1", Name: "Counter", UnitPrice: 120},
					{ID: "p2", Name: "Shelf", UnitPrice: 45.5},
				},
			})
		case "cat2":
			json.NewEncoder(w).Encode(backend.ProductsResponse{
				Success: true,
				Products: []order.Product{
					{ID: "p3", Name: "Spotlight", UnitPrice: 18},
				},
			})
		default:
			json.NewEncoder(w).Encode(backend.ProductsResponse{Success: false, Message: "unknown category"})
		}
	case "getOrderByToken":
		if f.storedOrder != nil && r.URL.Query().Get("token") == f.storedOrder.EditToken {
			json.NewEncoder(w).Encode(backend.OrderReadResponse{Success: true, Order: f.storedOrder})
			return
		}
		json.NewEncoder(w).Encode(backend.OrderReadResponse{Success: false, Message: "invalid token"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGateway) handlePost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action    string             `json:"action"`
		OrderID   string             `json:"orderId"`
		EditToken string             `json:"editToken"`
		Payload   order.OrderPayload `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch body.Action {
	case "createOrder":
		f.createCalls++
		if f.failWrites {
			json.NewEncoder(w).Encode(backend.OrderWriteResponse{Success: false, Message: "write failed"})
			return
		}
		f.lastPayload = body.Payload
		json.NewEncoder(w).Encode(backend.OrderWriteResponse{
			Success:   true,
			OrderID:   "ORD-001",
			EditToken: "tok-abc",
			Message:   "created",
		})
	case "updateOrder":
		f.updateCalls++
		if f.failWrites {
			json.NewEncoder(w).Encode(backend.OrderWriteResponse{Success: false, Message: "write failed"})
			return
		}
		f.lastPayload = body.Payload
		f.lastOrderID = body.OrderID
		f.lastEditToken = body.EditToken
		json.NewEncoder(w).Encode(backend.OrderWriteResponse{
			Success: true,
			OrderID: body.OrderID,
			Message: "updated",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestController(t *testing.T, f *fakeGateway, cfg Config) *Controller {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	client := backend.NewClient(server.URL)
	loader := catalogue.NewLoader(client, cache.New(5*time.Minute, 0))
	return New(client, loader, cfg)
}

func validInfo() order.UserInfo {
	return order.UserInfo{
		Name:        "Dana Weiss",
		Email:       "dana@example.com",
		Department:  "Events",
		Hub:         "Berlin",
		BackupName:  "Robin Tal",
		BackupEmail: "robin@example.com",
	}
}

func TestSubmitInfoValidationBlocksBackendCall(t *testing.T) {
	f := &fakeGateway{}
	ctrl := newTestController(t, f, Config{})

	errs, err := ctrl.SubmitInfo(context.Background(), order.UserInfo{Name: "only a name"})
	require.NoError(t, err)
	assert.NotEmpty(t, errs)
	assert.Contains(t, errs, "email")

	assert.Equal(t, 0, f.createCalls, "invalid record never reaches the backend")
	assert.False(t, ctrl.InfoSubmitted())
	assert.Equal(t, PhaseInfo, ctrl.Phase())
	assert.Equal(t, "only a name", ctrl.UserInfo().Name, "pending record kept for correction")
}

func TestSubmitInfoCreatesOrderOnce(t *testing.T) {
	f := &fakeGateway{}
	ctrl := newTestController(t, f, Config{})

	errs, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)
	require.Empty(t, errs)

	assert.Equal(t, 1, f.createCalls)
	assert.Equal(t, "ORD-001", ctrl.OrderID())
	assert.Equal(t, "tok-abc", ctrl.EditToken())
	assert.True(t, ctrl.InfoSubmitted())
	assert.Equal(t, PhasePhase1, ctrl.Phase())
	assert.Equal(t, "info", f.lastPayload.EmailType)

	// Every later submission is an update scoped by the captured ids.
	errs, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3"})
	require.NoError(t, err)
	require.Empty(t, errs)

	assert.Equal(t, 1, f.createCalls, "order is created exactly once")
	assert.Equal(t, 1, f.updateCalls)
	assert.Equal(t, "ORD-001", f.lastOrderID)
	assert.Equal(t, "tok-abc", f.lastEditToken)
	assert.Equal(t, "phase1", f.lastPayload.EmailType)
}

func TestSubmitPhase1GatedByFeatureFlag(t *testing.T) {
	f := &fakeGateway{phase2Enabled: false}
	ctrl := newTestController(t, f, Config{})

	_, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)

	_, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3"})
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingPhase2, ctrl.Phase(), "product selection closed while the flag is off")

	// The flag flips server-side; the next transition honors it.
	f.mu.Lock()
	f.phase2Enabled = true
	f.mu.Unlock()

	require.NoError(t, ctrl.EditPhase(PhasePhase1))
	_, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3"})
	require.NoError(t, err)
	assert.Equal(t, PhasePhase2, ctrl.Phase())
}

func TestFailedPersistLeavesStateUncommitted(t *testing.T) {
	f := &fakeGateway{failWrites: true}
	ctrl := newTestController(t, f, Config{})

	errs, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.Error(t, err)
	assert.Empty(t, errs)

	assert.False(t, ctrl.InfoSubmitted())
	assert.Equal(t, PhaseInfo, ctrl.Phase())
	assert.Empty(t, ctrl.OrderID())
	assert.Equal(t, validInfo(), ctrl.UserInfo(), "pending record survives the failure")

	// Backend recovers; the retry succeeds without data loss.
	f.mu.Lock()
	f.failWrites = false
	f.mu.Unlock()

	errs, err = ctrl.SubmitInfo(context.Background(), ctrl.UserInfo())
	require.NoError(t, err)
	require.Empty(t, errs)
	assert.True(t, ctrl.InfoSubmitted())
}

func TestSetQuantityAndLineItems(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{})

	_, err := ctrl.EnsureCategoryLoaded(context.Background(), "cat1", "Stands")
	require.NoError(t, err)

	assert.ErrorIs(t, ctrl.SetQuantity("ghost", 1), ErrUnknownProduct)

	require.NoError(t, ctrl.SetQuantity("p1", 1))
	require.NoError(t, ctrl.SetQuantity("p2", 3))

	items := ctrl.LineItems()
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, 120.0, items[0].LineTotal, "single unit line total equals unit price")
	assert.Equal(t, 3*45.5, items[1].LineTotal)
	assert.Equal(t, "Stands", items[0].CategoryName)

	// Zero removes the line entirely.
	require.NoError(t, ctrl.SetQuantity("p1", 0))
	items = ctrl.LineItems()
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)
}

func TestSubmitOrderRequiresLineItems(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{})

	_, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)
	_, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3"})
	require.NoError(t, err)
	require.Equal(t, PhasePhase2, ctrl.Phase())

	err = ctrl.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, ErrNoLineItems)
	assert.NotEqual(t, PhaseConfirmed, ctrl.Phase())
}

func TestSubmitOrderOnlyReachableFromProductPhase(t *testing.T) {
	f := &fakeGateway{phase2Enabled: false}
	ctrl := newTestController(t, f, Config{})

	// Products can be browsed and quantities staged from any phase, but
	// that alone must not make the final submission reachable.
	_, err := ctrl.EnsureCategoryLoaded(context.Background(), "cat1", "Stands")
	require.NoError(t, err)
	require.NoError(t, ctrl.SetQuantity("p1", 1))

	err = ctrl.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, ErrOrderNotReady)
	assert.Equal(t, PhaseInfo, ctrl.Phase())
	assert.False(t, ctrl.InfoSubmitted())
	assert.Equal(t, 0, f.createCalls, "nothing reaches the backend before the phases are submitted")
	assert.Equal(t, 0, f.updateCalls)

	// Both phases submitted with product selection closed: the flow parks
	// on the awaiting state and final submission stays out of reach.
	_, err = ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)
	_, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3"})
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingPhase2, ctrl.Phase())

	err = ctrl.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, ErrOrderNotReady)
	assert.NotEqual(t, PhaseConfirmed, ctrl.Phase())
	assert.Equal(t, "phase1", f.lastPayload.EmailType, "no final payload went out")
}

func TestSubmitOrderConfirms(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{})

	_, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)
	_, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3"})
	require.NoError(t, err)

	_, err = ctrl.EnsureCategoryLoaded(context.Background(), "cat1", "Stands")
	require.NoError(t, err)
	require.NoError(t, ctrl.SetQuantity("p1", 2))

	require.NoError(t, ctrl.SubmitOrder(context.Background()))
	assert.Equal(t, PhaseConfirmed, ctrl.Phase())
	assert.Equal(t, "final", f.lastPayload.EmailType)
	require.Len(t, f.lastPayload.LineItems, 1)
	require.NotNil(t, f.lastPayload.Totals.Total)
	assert.Equal(t, 240.0, *f.lastPayload.Totals.Total)

	// Reopening and resubmitting a phase after confirmation stays confirmed.
	require.NoError(t, ctrl.EditPhase(PhaseInfo))
	info := validInfo()
	info.Mobile = "+49 30 1234"
	_, err = ctrl.SubmitInfo(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, ctrl.Phase())
}

func TestTotalsTaxMode(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{TotalsMode: TotalsModeTax, TaxRate: 0.18})

	_, err := ctrl.EnsureCategoryLoaded(context.Background(), "cat1", "Stands")
	require.NoError(t, err)
	require.NoError(t, ctrl.SetQuantity("p1", 1))

	totals := ctrl.Totals(ctrl.LineItems())
	require.NotNil(t, totals.Subtotal)
	require.NotNil(t, totals.TaxAmount)
	require.NotNil(t, totals.GrandTotal)
	assert.Nil(t, totals.Total, "exactly one totals shape is active")
	assert.Equal(t, 120.0, *totals.Subtotal)
	assert.InDelta(t, 21.6, *totals.TaxAmount, 0.0001)
	assert.InDelta(t, 141.6, *totals.GrandTotal, 0.0001)
}

func TestTotalsFlatModeIsDefault(t *testing.T) {
	f := &fakeGateway{}
	ctrl := newTestController(t, f, Config{})

	totals := ctrl.Totals(nil)
	require.NotNil(t, totals.Total)
	assert.Equal(t, 0.0, *totals.Total)
	assert.Nil(t, totals.Subtotal)
}

func TestEditPhaseNeverDemotesLaterPhases(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{})

	_, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)
	_, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3"})
	require.NoError(t, err)

	require.NoError(t, ctrl.EditPhase(PhaseInfo))
	assert.Equal(t, PhaseInfo, ctrl.Phase())
	assert.True(t, ctrl.Phase1Submitted(), "later phases stay submitted during re-edit")

	info := validInfo()
	info.Department = "Marketing"
	_, err = ctrl.SubmitInfo(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, PhasePhase2, ctrl.Phase(), "pointer returns to the furthest reachable phase")
}

func TestEditPhaseRejectsUnsubmitted(t *testing.T) {
	f := &fakeGateway{}
	ctrl := newTestController(t, f, Config{})

	assert.ErrorIs(t, ctrl.EditPhase(PhaseInfo), ErrPhaseNotSubmitted)
	assert.ErrorIs(t, ctrl.EditPhase(PhasePhase1), ErrPhaseNotSubmitted)
}

func TestResumeFromToken(t *testing.T) {
	f := &fakeGateway{
		storedOrder: &backend.StoredOrder{
			OrderPayload: order.OrderPayload{
				UserInfo:   validInfo(),
				Phase1Data: &order.Phase1Data{Footprint: "6x3"},
				LineItems: []order.OrderLineItem{
					{CategoryID: "cat1", CategoryName: "Stands", ProductID: "p2", Quantity: 2},
				},
			},
			OrderID:   "ORD-777",
			EditToken: "tok-resume",
			Settings:  &backend.Settings{Phase2Enabled: true},
		},
	}
	ctrl := newTestController(t, f, Config{})

	require.NoError(t, ctrl.ResumeFromToken(context.Background(), "tok-resume", ""))

	assert.True(t, ctrl.EditMode())
	assert.Equal(t, "ORD-777", ctrl.OrderID())
	assert.Equal(t, "tok-resume", ctrl.EditToken())
	assert.True(t, ctrl.InfoSubmitted())
	assert.True(t, ctrl.Phase1Submitted())
	assert.Equal(t, PhasePhase2, ctrl.Phase())
	assert.Equal(t, validInfo(), ctrl.UserInfo())

	// Cart quantities are restored against freshly loaded product data.
	items := ctrl.LineItems()
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)
	assert.Equal(t, 2*45.5, items[0].LineTotal)
}

func TestResumeFailureIsBlocking(t *testing.T) {
	f := &fakeGateway{}
	ctrl := newTestController(t, f, Config{})

	err := ctrl.ResumeFromToken(context.Background(), "no-such-token", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResumeFailed))

	// The controller must not degrade into a fresh empty flow.
	assert.False(t, ctrl.EditMode())
	assert.Empty(t, ctrl.OrderID())
}

func TestResumeWithoutPhase1LandsOnPhase1(t *testing.T) {
	f := &fakeGateway{
		storedOrder: &backend.StoredOrder{
			OrderPayload: order.OrderPayload{UserInfo: validInfo()},
			OrderID:      "ORD-778",
			EditToken:    "tok-early",
			Settings:     &backend.Settings{Phase2Enabled: true},
		},
	}
	ctrl := newTestController(t, f, Config{})

	require.NoError(t, ctrl.ResumeFromToken(context.Background(), "tok-early", ""))
	assert.True(t, ctrl.InfoSubmitted())
	assert.False(t, ctrl.Phase1Submitted())
	assert.Equal(t, PhasePhase1, ctrl.Phase())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{})

	_, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)
	_, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3", SharedStorage: true, StorageSize: "2sqm"})
	require.NoError(t, err)
	_, err = ctrl.EnsureCategoryLoaded(context.Background(), "cat1", "Stands")
	require.NoError(t, err)
	require.NoError(t, ctrl.SetQuantity("p1", 2))

	snap := ctrl.Snapshot()

	restored := newTestController(t, f, Config{})
	restored.Restore(snap)
	restored.Rehydrate(context.Background())

	assert.Equal(t, ctrl.Phase(), restored.Phase())
	assert.Equal(t, ctrl.OrderID(), restored.OrderID())
	assert.Equal(t, ctrl.EditToken(), restored.EditToken())
	assert.Equal(t, ctrl.UserInfo(), restored.UserInfo())
	require.NotNil(t, restored.Phase1Data())
	assert.Equal(t, "3x3", restored.Phase1Data().Footprint)
	assert.Equal(t, ctrl.Quantities(), restored.Quantities())

	items := restored.LineItems()
	require.Len(t, items, 1)
	assert.Equal(t, 240.0, items[0].LineTotal)
}

func TestConfirmationSurvivesSnapshotRestore(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{})

	_, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)
	_, err = ctrl.SubmitPhase1(context.Background(), order.Phase1Data{Footprint: "3x3"})
	require.NoError(t, err)
	_, err = ctrl.EnsureCategoryLoaded(context.Background(), "cat1", "Stands")
	require.NoError(t, err)
	require.NoError(t, ctrl.SetQuantity("p1", 1))
	require.NoError(t, ctrl.SubmitOrder(context.Background()))

	// Reopen a phase mid-edit, then lose the process; the restored flow
	// must still return to confirmed after the resubmit.
	require.NoError(t, ctrl.EditPhase(PhaseInfo))
	snap := ctrl.Snapshot()

	restored := newTestController(t, f, Config{})
	restored.Restore(snap)
	restored.Rehydrate(context.Background())

	assert.Equal(t, PhaseInfo, restored.Phase())
	_, err = restored.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, restored.Phase())
}

func TestRefreshSettingsFailureKeepsLastFlag(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{})

	ctrl.RefreshSettings(context.Background())
	require.True(t, ctrl.Phase2Enabled())

	f.mu.Lock()
	f.failSettings = true
	f.mu.Unlock()

	ctrl.RefreshSettings(context.Background())
	assert.True(t, ctrl.Phase2Enabled(), "a failed fetch keeps the last known flag")
}

func TestReset(t *testing.T) {
	f := &fakeGateway{phase2Enabled: true}
	ctrl := newTestController(t, f, Config{})

	_, err := ctrl.SubmitInfo(context.Background(), validInfo())
	require.NoError(t, err)

	ctrl.Reset()

	assert.Equal(t, PhaseInfo, ctrl.Phase())
	assert.False(t, ctrl.InfoSubmitted())
	assert.Empty(t, ctrl.OrderID())
	assert.Empty(t, ctrl.EditToken())
	assert.Empty(t, ctrl.Quantities())
	assert.Equal(t, order.UserInfo{}, ctrl.UserInfo())
}
