// Package apiclient is a typed HTTP client for the donut order API.
package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/donut-orders/internal/domain/donut"
	"github.com/xenking/donut-orders/internal/domain/order"
)

const apiPrefix = "/api/v1"

// Client talks to one API server.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("base url must be http or https, got %q", u.Scheme)
	}
	c := &Client{
		base: strings.TrimRight(u.String(), "/") + apiPrefix,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListDonuts returns the flavor catalog.
func (c *Client) ListDonuts(ctx context.Context) ([]donut.Donut, error) {
	var out []donut.Donut
	err := c.do(ctx, http.MethodGet, "/donuts", nil, http.StatusOK, func(d *jx.Decoder) error {
		return onlyField(d, "donuts", func(d *jx.Decoder) error {
			return d.Arr(func(d *jx.Decoder) error {
				v, err := decodeDonut(d)
				if err != nil {
					return err
				}
				out = append(out, v)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PlaceOrder submits req and returns the created order without details.
func (c *Client) PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Summary, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(req.Name) })
		e.Field("donuts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range req.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("donutId", func(e *jx.Encoder) { e.Int64(it.DonutID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
	})

	var out order.Summary
	err := c.do(ctx, http.MethodPost, "/orders", e.Bytes(), http.StatusCreated, func(d *jx.Decoder) error {
		return onlyField(d, "order", func(d *jx.Decoder) error {
			return decodeSummary(d, &out, nil)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder returns one order with its details and total.
func (c *Client) GetOrder(ctx context.Context, id int64) (*order.DetailedSummary, error) {
	var out order.DetailedSummary
	err := c.do(ctx, http.MethodGet, "/orders/"+strconv.FormatInt(id, 10), nil, http.StatusOK, func(d *jx.Decoder) error {
		return onlyField(d, "order", func(d *jx.Decoder) error {
			return decodeSummary(d, &out.Summary, func(d *jx.Decoder, key string) (bool, error) {
				switch key {
				case "total":
					v, err := d.Int()
					out.Total = v
					return true, err
				case "details":
					return true, d.Arr(func(d *jx.Decoder) error {
						det, err := decodeDetail(d)
						if err != nil {
							return err
						}
						out.Details = append(out.Details, det)
						return nil
					})
				}
				return false, nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrders returns every order, oldest first.
func (c *Client) ListOrders(ctx context.Context) ([]order.Summary, error) {
	var out []order.Summary
	err := c.do(ctx, http.MethodGet, "/orders", nil, http.StatusOK, func(d *jx.Decoder) error {
		return onlyField(d, "orders", func(d *jx.Decoder) error {
			return d.Arr(func(d *jx.Decoder) error {
				var s order.Summary
				if err := decodeSummary(d, &s, nil); err != nil {
					return err
				}
				out = append(out, s)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, want int, decode func(*jx.Decoder) error) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode != want {
		return decodeError(resp.StatusCode, data)
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

// onlyField decodes the value under key in a JSON object, skipping the rest.
func onlyField(d *jx.Decoder, key string, f func(*jx.Decoder) error) error {
	found := false
	err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		if string(k) != key {
			return d.Skip()
		}
		found = true
		return f(d)
	})
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("missing %q", key)
	}
	return nil
}

func decodeDonut(d *jx.Decoder) (donut.Donut, error) {
	var v donut.Donut
	err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "id":
			v.ID, err = d.Int64()
		case "flavor":
			v.Flavor, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return v, err
}

func decodeDetail(d *jx.Decoder) (order.DetailSummary, error) {
	var v order.DetailSummary
	err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "id":
			v.ID, err = d.Int64()
		case "quantity":
			v.Quantity, err = d.Int()
		case "donut":
			v.Donut, err = decodeDonut(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return v, err
}

// decodeSummary fills s from an order object. extra, when set, gets the
// first chance at every key.
func decodeSummary(d *jx.Decoder, s *order.Summary, extra func(*jx.Decoder, string) (bool, error)) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		key := string(k)
		if extra != nil {
			if handled, err := extra(d, key); handled || err != nil {
				return err
			}
		}
		switch key {
		case "id":
			v, err := d.Int64()
			s.ID = v
			return err
		case "name":
			v, err := d.Str()
			s.Name = v
			return err
		case "createdAt":
			v, err := d.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return errors.Wrap(err, "createdAt")
			}
			s.CreatedAt = t
			return nil
		default:
			return d.Skip()
		}
	})
}
