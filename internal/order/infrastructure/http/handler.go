package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow/order-validation/internal/order/application"
	"github.com/orderflow/order-validation/internal/order/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders/place", h.placeOrder)
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders(false, false))
	r.Get("/orders/with-items", h.listOrders(true, false))
	r.Get("/orders/with-payments", h.listOrders(false, true))
	r.Get("/orders/with-all", h.listOrders(true, true))
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}", h.updateOrder)
	r.Delete("/orders/{id}", h.deleteOrder)
	return r
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	var o domain.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order payload")
		return
	}
	if o.Status == "" {
		o.Status = domain.StatusPending
	}

	placed, err := h.service.PlaceOrder(ctx, o)
	if err != nil {
		h.writePlaceError(w, o.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, placed)
}

// writePlaceError maps the saga's error taxonomy onto HTTP statuses:
// rejection = 400, unknown outcome (timeout) = 504, everything else = 500.
func (h *Handler) writePlaceError(w http.ResponseWriter, orderID int64, err error) {
	var rej *application.RejectionError
	if errors.As(err, &rej) {
		switch rej.Check {
		case application.CheckStock:
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Order %d is rejected due to insufficient stock.", rej.OrderID))
		default:
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Order %d is rejected because the customer is invalid.", rej.OrderID))
		}
		return
	}

	var timeout *application.TimeoutError
	if errors.As(err, &timeout) {
		switch timeout.Check {
		case application.CheckStock:
			writeMessage(w, http.StatusGatewayTimeout, "Stock check request timed out.")
		default:
			writeMessage(w, http.StatusGatewayTimeout, "Customer check request timed out.")
		}
		return
	}

	h.log.Error("place order failed", "order_id", orderID, "err", err)
	writeMessage(w, http.StatusInternalServerError, "An error occurred while processing the order.")
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var o domain.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order payload")
		return
	}
	if err := h.service.CreateOrder(r.Context(), &o); err != nil {
		h.log.Error("create order failed", "order_id", o.ID, "err", err)
		writeMessage(w, http.StatusInternalServerError, "could not create order")
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(withItems, withPayments bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := h.service.ListOrders(r.Context(), withItems, withPayments)
		if err != nil {
			h.log.Error("list orders failed", "err", err)
			writeMessage(w, http.StatusInternalServerError, "could not list orders")
			return
		}
		if orders == nil {
			orders = []domain.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.service.GetOrder(r.Context(), id)
	if errors.Is(err, application.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.log.Error("get order failed", "order_id", id, "err", err)
		writeMessage(w, http.StatusInternalServerError, "could not load order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var o domain.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order payload")
		return
	}
	if o.ID != id {
		writeMessage(w, http.StatusBadRequest, "order id mismatch")
		return
	}
	err = h.service.UpdateOrder(r.Context(), o)
	if errors.Is(err, application.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.log.Error("update order failed", "order_id", id, "err", err)
		writeMessage(w, http.StatusInternalServerError, "could not update order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}
	err = h.service.DeleteOrder(r.Context(), id)
	if errors.Is(err, application.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.log.Error("delete order failed", "order_id", id, "err", err)
		writeMessage(w, http.StatusInternalServerError, "could not delete order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func orderID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
