package handler

import (
	"io"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/donut-orders/internal/domain/order"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// timeLayout renders timestamps in UTC with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeErrors writes {"errors": {field: [{"message": msg}, ...]}} with
// fields in sorted order.
func writeErrors(w http.ResponseWriter, status int, fields map[string][]string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("errors", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for _, field := range slices.Sorted(maps.Keys(fields)) {
						e.Field(field, func(e *jx.Encoder) {
							e.Arr(func(e *jx.Encoder) {
								for _, msg := range fields[field] {
									e.Obj(func(e *jx.Encoder) {
										e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
									})
								}
							})
						})
					}
				})
			})
		})
	})
}

// fail maps a domain error to its response. Unexpected errors are logged
// and never leak to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *order.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrors(w, http.StatusUnprocessableEntity, verr.Fields)
	case errors.Is(err, order.ErrNotFound):
		writeErrors(w, http.StatusNotFound, map[string][]string{
			"order": {"not found"},
		})
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeErrors(w, http.StatusInternalServerError, map[string][]string{
			"server": {"internal server error"},
		})
	}
}

func readPlaceOrder(w http.ResponseWriter, r *http.Request) (order.PlaceOrderRequest, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return order.PlaceOrderRequest{}, errors.Wrap(err, "read body")
	}
	return decodePlaceOrder(data)
}

// decodePlaceOrder parses a submission. Missing or null fields are left
// empty for validation to report; unknown fields are ignored.
func decodePlaceOrder(data []byte) (order.PlaceOrderRequest, error) {
	var req order.PlaceOrderRequest
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return req, errors.New("body is not an object")
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			if d.Next() == jx.Null {
				return d.Null()
			}
			name, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			req.Name = name
			return nil
		case "donuts":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeLineItem(d)
				if err != nil {
					return errors.Wrap(err, "donuts")
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return order.PlaceOrderRequest{}, err
	}
	if d.Next() != jx.Invalid {
		return order.PlaceOrderRequest{}, errors.New("trailing data after body")
	}
	return req, nil
}

func decodeLineItem(d *jx.Decoder) (order.LineItem, error) {
	var item order.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "donutId":
			v, err := decodeInt(d)
			if err != nil {
				return errors.Wrap(err, "donutId")
			}
			item.DonutID = v
		case "quantity":
			v, err := decodeInt(d)
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			if v > math.MaxInt32 || v < math.MinInt32 {
				v = -1
			}
			item.Quantity = int(v)
		default:
			return d.Skip()
		}
		return nil
	})
	return item, err
}

// decodeInt reads a JSON number or a numeric string. Values that are not
// integers decode as zero so validation rejects them; only malformed JSON is
// an error.
func decodeInt(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return 0, err
		}
		if !n.IsInt() {
			return 0, nil
		}
		v, err := n.Int64()
		if err != nil {
			return 0, nil
		}
		return v, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, nil
		}
		return v, nil
	default:
		return 0, d.Skip()
	}
}
