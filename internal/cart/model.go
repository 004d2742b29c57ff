package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is the stock snapshot an add-to-cart call site looks up before
// mutating the cart.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"quantity"`
}

// Line is one product entry in the cart. Lines are unique by ProductID.
type Line struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	StockSnapshot int             `json:"stock_snapshot"`
}

// Subtotal is UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) valid() bool {
	return l.ProductID > 0 && l.Quantity >= 1 && !l.UnitPrice.IsNegative()
}

// Snapshot is an immutable copy of the cart.
type Snapshot struct {
	Tenant    string          `json:"tenant"`
	Lines     []Line          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// IsEmpty reports whether the snapshot holds no lines.
func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// StorageKey is the persisted record name for a tenant's cart.
func StorageKey(tenant string) string {
	return fmt.Sprintf("cart_%s", tenant)
}

func total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

func itemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
