package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/donut-orders/internal/domain/order"
)

// ListOrders returns every order, oldest first, without details.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.orders.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, s := range summaries {
						e.Obj(func(e *jx.Encoder) { encodeSummaryFields(e, s) })
					}
				})
			})
		})
	})
}

// GetOrder returns one order with its details and total. Ids that are not
// positive integers are reported as not found.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, order.ErrNotFound)
		return
	}

	s, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					encodeSummaryFields(e, s.Summary)
					e.Field("details", func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							for _, d := range s.Details {
								e.Obj(func(e *jx.Encoder) {
									e.Field("id", func(e *jx.Encoder) { e.Int64(d.ID) })
									e.Field("quantity", func(e *jx.Encoder) { e.Int(d.Quantity) })
									e.Field("donut", func(e *jx.Encoder) { encodeDonut(e, d.Donut) })
								})
							}
						})
					})
					e.Field("total", func(e *jx.Encoder) { e.Int(s.Total) })
				})
			})
		})
	})
}

// PlaceOrder creates an order from {name, donuts: [{donutId, quantity}]}.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, err := readPlaceOrder(w, r)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, map[string][]string{
			"body": {"malformed JSON"},
		})
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "place order"))
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) { encodeSummaryFields(e, order.Summarize(*o)) })
			})
		})
	})
}

func encodeSummaryFields(e *jx.Encoder, s order.Summary) {
	e.Field("id", func(e *jx.Encoder) { e.Int64(s.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
	e.Field("createdAt", func(e *jx.Encoder) { e.Str(formatTime(s.CreatedAt)) })
}
