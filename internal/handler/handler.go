// Package handler serves the donut ordering HTTP API.
package handler

import (
	"net/http"

	"github.com/xenking/donut-orders/internal/domain/donut"
	"github.com/xenking/donut-orders/internal/domain/order"
)

// PathPrefix is the prefix of every API route.
const PathPrefix = "/api/v1"

// Handler maps HTTP requests to the flavor catalog and the order service.
type Handler struct {
	donuts donut.Repository
	orders *order.Service
}

// New constructs a Handler with the required domain dependencies.
func New(donuts donut.Repository, orders *order.Service) *Handler {
	return &Handler{
		donuts: donuts,
		orders: orders,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+PathPrefix+"/donuts", h.ListDonuts)
	mux.HandleFunc("GET "+PathPrefix+"/orders", h.ListOrders)
	mux.HandleFunc("GET "+PathPrefix+"/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST "+PathPrefix+"/orders", h.PlaceOrder)
}
