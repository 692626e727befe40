package catalogue

import "catalogue-order/types/order"

// SampleCategories is the bundled catalogue used when both the category
// endpoint and the combined catalogue endpoint are unreachable. It mirrors
// the static data shipped with the form so the selector never renders empty.
var SampleCategories = []order.Category{
	{
		ID:   "electronics",
		Name: "Electronics",
		Products: []order.Product{
			{ID: "elec-001", Name: "Wireless Mouse", Description: "Ergonomic wireless mouse with USB receiver", Size: "Standard", UnitPrice: 29.99},
			{ID: "elec-002", Name: "Mechanical Keyboard", Description: "RGB backlit mechanical gaming keyboard", Size: "Full-size", UnitPrice: 89.99},
			{ID: "elec-003", Name: "USB-C Hub", Description: "7-in-1 USB-C hub with HDMI and card reader", Size: "Compact", UnitPrice: 49.99},
			{ID: "elec-004", Name: "Webcam HD", Description: "1080p HD webcam with built-in microphone", Size: "Standard", UnitPrice: 79.99},
		},
	},
	{
		ID:   "office",
		Name: "Office Supplies",
		Products: []order.Product{
			{ID: "off-001", Name: "Notebook Set", Description: "Pack of 3 lined notebooks, A5 size", Size: "A5", UnitPrice: 12.99},
			{ID: "off-002", Name: "Pen Collection", Description: "Assorted ballpoint pens, 12-pack", Size: "12-pack", UnitPrice: 8.99},
			{ID: "off-003", Name: "Desk Organizer", Description: "Bamboo desk organizer with multiple compartments", Size: "Large", UnitPrice: 34.99},
		},
	},
	{
		ID:   "furniture",
		Name: "Furniture",
		Products: []order.Product{
			{ID: "furn-001", Name: "Ergonomic Chair", Description: "Adjustable office chair with lumbar support", Size: "Standard", UnitPrice: 249.99},
			{ID: "furn-002", Name: "Standing Desk", Description: "Electric height-adjustable standing desk", Size: "60\" x 30\"", UnitPrice: 499.99},
			{ID: "furn-003", Name: "Monitor Stand", Description: "Wooden monitor stand with storage drawer", Size: "Medium", UnitPrice: 45.99},
		},
	},
	{
		ID:   "accessories",
		Name: "Accessories",
		Products: []order.Product{
			{ID: "acc-001", Name: "Laptop Sleeve", Description: "Neoprene laptop sleeve, 15-inch", Size: "15\"", UnitPrice: 19.99},
			{ID: "acc-002", Name: "Cable Management", Description: "Cable clips and organizer set", Size: "20-piece", UnitPrice: 14.99},
			{ID: "acc-003", Name: "Phone Stand", Description: "Adjustable aluminum phone stand", Size: "Universal", UnitPrice: 24.99},
			{ID: "acc-004", Name: "Desk Lamp", Description: "LED desk lamp with touch control", Size: "Adjustable", UnitPrice: 39.99},
		},
	},
	{
		ID:   "storage",
		Name: "Storage Solutions",
		Products: []order.Product{
			{ID: "stor-001", Name: "Filing Cabinet", Description: "3-drawer metal filing cabinet", Size: "3-drawer", UnitPrice: 129.99},
			{ID: "stor-002", Name: "Bookshelf", Description: "5-tier wooden bookshelf", Size: "5-tier", UnitPrice: 89.99},
			{ID: "stor-003", Name: "Storage Boxes", Description: "Set of 4 decorative storage boxes", Size: "Medium", UnitPrice: 29.99},
		},
	},
}
