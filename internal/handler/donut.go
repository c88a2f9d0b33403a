package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/donut-orders/internal/domain/donut"
)

// ListDonuts returns the flavor catalog.
func (h *Handler) ListDonuts(w http.ResponseWriter, r *http.Request) {
	donuts, err := h.donuts.List(r.Context())
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "list donuts"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("donuts", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, d := range donuts {
						encodeDonut(e, d)
					}
				})
			})
		})
	})
}

func encodeDonut(e *jx.Encoder, d donut.Donut) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(d.ID) })
		e.Field("flavor", func(e *jx.Encoder) { e.Str(d.Flavor) })
	})
}
