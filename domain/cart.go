package domain

// CartLine is one entry of the client-supplied cart. A product repeated N times
// means quantity N. ClientPrice is whatever the browser believed the price was;
// it is accepted for compatibility and never used for charging.
type CartLine struct {
	ProductID   string   `json:"productId"`
	ClientPrice *float64 `json:"price,omitempty"`
}

// PricedLine is a cart line re-priced from the catalog at settlement time.
type PricedLine struct {
	ProductID string `json:"product_id" bson:"product_id"`
	UnitPrice Cents  `json:"unit_price" bson:"unit_price"`
}

func TotalOf(lines []PricedLine) Cents {
	var total Cents
	for _, l := range lines {
		total += l.UnitPrice
	}
	return total
}
