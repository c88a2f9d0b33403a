// Package composer accumulates a donut selection before it is submitted as
// an order.
package composer

import (
	"fmt"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/donut-orders/internal/domain/order"
)

// MaxQuantity is the largest quantity offered per flavor.
const MaxQuantity = 3

// ErrQuantityOutOfRange is returned by SelectQuantity for quantities outside
// 0..MaxQuantity.
var ErrQuantityOutOfRange = errors.New("quantity out of range")

// Entry is one selected flavor.
type Entry struct {
	DonutID  int64
	Flavor   string
	Quantity int
}

// Composer holds an order name and at most one entry per donut. Entries are
// kept in the order they were last touched.
//
// A Composer is not safe for concurrent use.
type Composer struct {
	name    string
	entries []Entry
}

// New returns an empty Composer.
func New() *Composer {
	return &Composer{}
}

// SelectQuantity sets the quantity for a donut. A positive quantity inserts
// the donut or replaces its quantity, and moves it to the end. Zero removes
// it; removing an absent donut does nothing.
func (c *Composer) SelectQuantity(donutID int64, flavor string, quantity int) error {
	if quantity < 0 || quantity > MaxQuantity {
		return errors.Wrapf(ErrQuantityOutOfRange, "donut %d: %d", donutID, quantity)
	}

	if i := c.index(donutID); i >= 0 {
		c.entries = slices.Delete(c.entries, i, i+1)
	}
	if quantity == 0 {
		return nil
	}
	c.entries = append(c.entries, Entry{
		DonutID:  donutID,
		Flavor:   flavor,
		Quantity: quantity,
	})
	return nil
}

// SetName sets the order name. It is submitted as-is; trimming happens on
// the server.
func (c *Composer) SetName(name string) { c.name = name }

// Name returns the order name.
func (c *Composer) Name() string { return c.name }

// Entries returns a copy of the current selection.
func (c *Composer) Entries() []Entry { return slices.Clone(c.entries) }

// Len returns the number of selected flavors.
func (c *Composer) Len() int { return len(c.entries) }

// Quantity returns the selected quantity for a donut, or zero.
func (c *Composer) Quantity(donutID int64) int {
	if i := c.index(donutID); i >= 0 {
		return c.entries[i].Quantity
	}
	return 0
}

// Payload converts the selection into a submission.
func (c *Composer) Payload() order.PlaceOrderRequest {
	items := make([]order.LineItem, len(c.entries))
	for i, e := range c.entries {
		items[i] = order.LineItem{DonutID: e.DonutID, Quantity: e.Quantity}
	}
	return order.PlaceOrderRequest{Name: c.name, Items: items}
}

// Summary returns one line per entry, e.g. "Glazed, quantity: 2".
func (c *Composer) Summary() []string {
	lines := make([]string, len(c.entries))
	for i, e := range c.entries {
		lines[i] = fmt.Sprintf("%s, quantity: %d", e.Flavor, e.Quantity)
	}
	return lines
}

// Clear drops the name and every entry.
func (c *Composer) Clear() {
	c.name = ""
	c.entries = nil
}

func (c *Composer) index(donutID int64) int {
	return slices.IndexFunc(c.entries, func(e Entry) bool {
		return e.DonutID == donutID
	})
}
