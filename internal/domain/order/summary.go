package order

import (
	"time"

	"github.com/xenking/donut-orders/internal/domain/donut"
)

// Summary is the list view of an order. It carries no details so list
// payloads stay small.
type Summary struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// DetailedSummary is the single-order view: the summary fields plus every
// detail with its donut and the total donut count.
type DetailedSummary struct {
	Summary
	Details []DetailSummary
	Total   int
}

// DetailSummary is one projected line item.
type DetailSummary struct {
	ID       int64
	Quantity int
	Donut    donut.Donut
}

// Summarize projects the exposed order fields.
func Summarize(o Order) Summary {
	return Summary{
		ID:        o.ID,
		Name:      o.Name,
		CreatedAt: o.CreatedAt,
	}
}

// SummarizeWithDetails projects an order loaded with its details. Details
// keep the order they were loaded in. If any detail has no resolved donut
// the projection fails with *DanglingDonutError and no partial summary is
// returned.
func SummarizeWithDetails(o Order) (*DetailedSummary, error) {
	out := &DetailedSummary{
		Summary: Summarize(o),
		Details: make([]DetailSummary, 0, len(o.Details)),
	}
	for _, d := range o.Details {
		if d.Donut == nil {
			return nil, &DanglingDonutError{DetailID: d.ID, DonutID: d.DonutID}
		}
		out.Details = append(out.Details, DetailSummary{
			ID:       d.ID,
			Quantity: d.Quantity,
			Donut:    *d.Donut,
		})
		out.Total += d.Quantity
	}
	return out, nil
}
