package models

// StockProduct is an inventory item with a quantity on hand.
type StockProduct struct {
	Base
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Quantity    float64 `json:"quantity"`
	MinQuantity float64 `json:"minQuantity,omitempty"`
}

// TableName returns the table name for StockProduct.
func (StockProduct) TableName() string {
	return "stock_products"
}

// Validate checks the product's fields.
func (p *StockProduct) Validate() error {
	v := newValidation(p)
	if p.Name == "" {
		v.Add("name", "is required")
	}
	if p.Quantity < 0 {
		v.Add("quantity", "must not be negative")
	}
	if p.MinQuantity < 0 {
		v.Add("minQuantity", "must not be negative")
	}
	return v.Err()
}

// IsLow reports whether the product is at or below its restock threshold.
func (p *StockProduct) IsLow() bool {
	return p.MinQuantity > 0 && p.Quantity <= p.MinQuantity
}

// StockRoutine consumes a product on a recurring schedule.
type StockRoutine struct {
	Base
	Recurrence
	Name             string  `json:"name"`
	ProductID        string  `json:"productId"`
	Quantity         float64 `json:"quantity"`
	IsActive         bool    `json:"isActive"`
	LinkedTrackingID string  `json:"linkedTrackingId,omitempty"`
}

// TableName returns the table name for StockRoutine.
func (StockRoutine) TableName() string {
	return "stock_routines"
}

// Validate checks the routine's fields.
func (r *StockRoutine) Validate() error {
	v := newValidation(r)
	if r.Name == "" {
		v.Add("name", "is required")
	}
	validReference(v, "productId", r.ProductID, true)
	if r.Quantity <= 0 {
		v.Add("quantity", "must be positive")
	}
	r.Recurrence.validate(v)
	validReference(v, "linkedTrackingId", r.LinkedTrackingID, false)
	return v.Err()
}
