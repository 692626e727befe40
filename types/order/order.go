package order

// UserInfo is the contact record collected in the Info phase. Once the
// phase is submitted the record is read-only until explicitly reopened.
type UserInfo struct {
	Name             string `json:"name" validate:"required,max=255"`
	Email            string `json:"email" validate:"required,max=255"`
	Department       string `json:"department" validate:"required,max=255"`
	Mobile           string `json:"mobile" validate:"omitempty,max=50"`
	BackupName       string `json:"backupName" validate:"required,max=255"`
	BackupEmail      string `json:"backupEmail" validate:"required,max=255"`
	Hub              string `json:"hub" validate:"required,max=255"`
	SameRequirements bool   `json:"sameRequirements"`

	// Legacy variant fields, kept for order records migrated from the
	// earlier single-phase form.
	Company string `json:"company,omitempty" validate:"omitempty,max=255"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,max=50"`
}

// Phase1Data is the exhibition requirements record collected in Phase 1.
type Phase1Data struct {
	Footprint        string `json:"footprint" validate:"required"`
	LocationRequests string `json:"locationRequests,omitempty"`
	SharedStorage    bool   `json:"sharedStorage"`
	StorageSize      string `json:"storageSize,omitempty"`
}

// Product is one catalogue item. Size and supplier may be hidden from the
// presentation layer but are retained on order records.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unitPrice"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	TemplateURL string  `json:"templateUrl,omitempty"`
	Size        string  `json:"size,omitempty"`
	Supplier    string  `json:"supplier,omitempty"`
}

// Category groups products. Products may be empty until lazily loaded.
type Category struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Products []Product `json:"products,omitempty"`
}

// OrderLineItem is derived from the quantities map and loaded product data.
// It is regenerated on every quantity change, never hand-maintained.
type OrderLineItem struct {
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	UnitPrice    float64 `json:"unitPrice"`
	Quantity     int     `json:"quantity"`
	LineTotal    float64 `json:"lineTotal"`
	Size         string  `json:"size,omitempty"`
	Supplier     string  `json:"supplier,omitempty"`
}

// OrderTotals carries exactly one of the two deployment shapes: the
// tax-inclusive fields or the flat Total. The active shape is selected by
// configuration, never both at once.
type OrderTotals struct {
	Subtotal   *float64 `json:"subtotal,omitempty"`
	TaxRate    *float64 `json:"taxRate,omitempty"`
	TaxAmount  *float64 `json:"taxAmount,omitempty"`
	GrandTotal *float64 `json:"grandTotal,omitempty"`
	Total      *float64 `json:"total,omitempty"`
}

// OrderPayload is the wire and persistence unit sent to the backend.
type OrderPayload struct {
	UserInfo   UserInfo        `json:"userInfo"`
	Phase1Data *Phase1Data     `json:"phase1Data,omitempty"`
	LineItems  []OrderLineItem `json:"lineItems"`
	Totals     OrderTotals     `json:"totals"`
	Timestamp  string          `json:"timestamp"`
	EmailType  string          `json:"emailType,omitempty"`
}
