package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
	"swapbook/apps/swapbook/internal/repository"
)

// OrderHandler handles order-related API endpoints
type OrderHandler struct {
	orderRepository       *repository.OrderRepository
	conditionalRepository *repository.ConditionalOrderRepository
	adaptiveRepository    *repository.AdaptiveOrderRepository
	logger                *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderRepository *repository.OrderRepository, conditionalRepository *repository.ConditionalOrderRepository, adaptiveRepository *repository.AdaptiveOrderRepository, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderRepository:       orderRepository,
		conditionalRepository: conditionalRepository,
		adaptiveRepository:    adaptiveRepository,
		logger:                logger,
	}
}

// GetOrder handles GET /api/orders/{network}/{order_id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	network := vars["network"]
	orderID := vars["order_id"]

	if network == "" || orderID == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "missing_parameters", "Network and order id are required")
		return
	}

	order, err := h.orderRepository.GetOrderByID(network, orderID)
	if err != nil {
		h.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to retrieve order")
		return
	}

	if order == nil {
		h.writeErrorResponse(w, http.StatusNotFound, "order_not_found", "Order not found")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, toOrderResponse(*order))
}

// ListOrders handles GET /api/orders/{network}?status=open
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	network := vars["network"]

	status := r.URL.Query().Get("status")
	if status == "" {
		status = model.OrderStatusOpen
	}

	orders, err := h.orderRepository.GetOrdersByStatus(network, status, 500)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.String("network", network), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to list orders")
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, toOrderResponse(order))
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// CreateConditionalOrder handles POST /api/conditional-orders
func (h *OrderHandler) CreateConditionalOrder(w http.ResponseWriter, r *http.Request) {
	var req ConditionalOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if msg := validateConditionalOrderRequest(req); msg != "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	co := model.ConditionalOrder{
		ID:           uuid.New().String(),
		Network:      req.Network,
		Maker:        strings.ToLower(req.Maker),
		BaseToken:    strings.ToLower(req.BaseToken),
		QuoteToken:   strings.ToLower(req.QuoteToken),
		Pair:         model.PairKey(req.BaseToken, req.QuoteToken),
		TriggerType:  req.TriggerType,
		TriggerPrice: req.TriggerPrice,
		TokenIn:      strings.ToLower(req.TokenIn),
		TokenOut:     strings.ToLower(req.TokenOut),
		AmountIn:     req.AmountIn,
		AmountOutMin: req.AmountOutMin,
		Expiration:   req.Expiration,
		Nonce:        req.Nonce,
		Receiver:     req.Receiver,
		Salt:         req.Salt,
		Signature:    req.Signature,
		Status:       model.ConditionalStatusPending,
	}

	if err := h.conditionalRepository.CreateConditionalOrder(co); err != nil {
		h.logger.Error("Failed to create conditional order", zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to create conditional order")
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, ConditionalOrderResponse{
		ID:           co.ID,
		Network:      co.Network,
		Maker:        co.Maker,
		Pair:         co.Pair,
		TriggerType:  co.TriggerType,
		TriggerPrice: co.TriggerPrice,
		Status:       co.Status,
	})
}

// GetConditionalOrder handles GET /api/conditional-orders/{id}
func (h *OrderHandler) GetConditionalOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	co, err := h.conditionalRepository.GetConditionalOrderByID(id)
	if err != nil {
		h.logger.Error("Failed to get conditional order", zap.String("id", id), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to retrieve conditional order")
		return
	}

	if co == nil {
		h.writeErrorResponse(w, http.StatusNotFound, "conditional_order_not_found", "Conditional order not found")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, ConditionalOrderResponse{
		ID:               co.ID,
		Network:          co.Network,
		Maker:            co.Maker,
		Pair:             co.Pair,
		TriggerType:      co.TriggerType,
		TriggerPrice:     co.TriggerPrice,
		Status:           co.Status,
		ResultingOrderID: co.ResultingOrderID,
		CreatedAt:        co.CreatedAt,
	})
}

// CancelConditionalOrder handles DELETE /api/conditional-orders/{id}
func (h *OrderHandler) CancelConditionalOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	affected, err := h.conditionalRepository.CancelConditionalOrder(id)
	if err != nil {
		h.logger.Error("Failed to cancel conditional order", zap.String("id", id), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to cancel conditional order")
		return
	}

	if affected == 0 {
		h.writeErrorResponse(w, http.StatusConflict, "not_cancellable", "Conditional order is not pending")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateConditionalOrderRequest(req ConditionalOrderRequest) string {
	switch {
	case req.Network == "":
		return "Network is required"
	case req.Maker == "":
		return "Maker is required"
	case req.BaseToken == "" || req.QuoteToken == "":
		return "Base and quote token addresses are required"
	case req.TokenIn == "" || req.TokenOut == "":
		return "Template token addresses are required"
	case req.TriggerPrice <= 0:
		return "Trigger price must be positive"
	case req.Signature == "":
		return "Signature is required"
	case req.Salt == "":
		return "Salt is required"
	case req.Receiver == "":
		return "Receiver is required"
	}

	if req.TriggerType != model.TriggerTypeStopLoss && req.TriggerType != model.TriggerTypeTakeProfit {
		return "Trigger type must be stop_loss or take_profit"
	}

	if amount, ok := new(big.Int).SetString(req.AmountIn, 10); !ok || amount.Sign() <= 0 {
		return "Amount in must be a positive integer string"
	}
	if amount, ok := new(big.Int).SetString(req.AmountOutMin, 10); !ok || amount.Sign() < 0 {
		return "Amount out min must be a non-negative integer string"
	}

	return ""
}

func toOrderResponse(order model.Order) OrderResponse {
	return OrderResponse{
		OrderID:                  order.OrderID,
		Network:                  order.Network,
		Maker:                    order.Maker,
		TokenIn:                  order.TokenIn,
		TokenOut:                 order.TokenOut,
		AmountIn:                 order.AmountIn,
		AmountOutMin:             order.AmountOutMin,
		Expiration:               order.Expiration,
		Price:                    order.Price,
		Remaining:                order.Remaining,
		Status:                   order.Status,
		Source:                   order.Source,
		SourceConditionalOrderID: order.SourceConditionalOrderID,
		CreatedAt:                order.CreatedAt,
	}
}

func (h *OrderHandler) writeJSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *OrderHandler) writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	h.writeJSONResponse(w, status, ErrorResponse{Error: code, Message: message})
}
