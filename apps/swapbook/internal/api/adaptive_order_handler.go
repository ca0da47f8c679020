package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"swapbook/apps/swapbook/internal/model"
	"swapbook/apps/swapbook/internal/pricing"
	"swapbook/apps/swapbook/internal/trigger"
)

// CreateAdaptiveOrder handles POST /api/adaptive-orders. It stores the signed
// order template as a resting open order and attaches the curve configuration
// the pricing engine reprices it from.
func (h *OrderHandler) CreateAdaptiveOrder(w http.ResponseWriter, r *http.Request) {
	var req AdaptiveOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}

	if msg := validateAdaptiveOrderRequest(req); msg != "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	orderID := trigger.DeriveOrderID(req.Network, req.Maker, req.Nonce, req.TokenIn, req.TokenOut, req.Salt)

	existing, err := h.orderRepository.GetOrderByID(req.Network, orderID)
	if err != nil {
		h.logger.Error("Failed to check for existing order", zap.String("order_id", orderID), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to create adaptive order")
		return
	}
	if existing != nil {
		h.writeErrorResponse(w, http.StatusConflict, "order_exists", "An order with this maker, nonce and salt already exists")
		return
	}

	price := pricing.FormatPrice(req.InitialPrice)
	order := model.Order{
		OrderID:      orderID,
		Network:      req.Network,
		Maker:        strings.ToLower(req.Maker),
		TokenIn:      strings.ToLower(req.TokenIn),
		TokenOut:     strings.ToLower(req.TokenOut),
		AmountIn:     req.AmountIn,
		AmountOutMin: req.AmountOutMin,
		Expiration:   req.Expiration,
		Nonce:        req.Nonce,
		Receiver:     req.Receiver,
		Salt:         req.Salt,
		Signature:    req.Signature,
		Price:        &price,
		Remaining:    req.AmountIn,
		Status:       model.OrderStatusOpen,
		Source:       model.OrderSourceDirect,
	}

	if err := h.orderRepository.CreateOrder(order); err != nil {
		h.logger.Error("Failed to create order for adaptive order", zap.String("order_id", orderID), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to create adaptive order")
		return
	}

	ao := model.AdaptiveOrder{
		OrderID:        orderID,
		Network:        req.Network,
		Pair:           model.PairKey(req.BaseToken, req.QuoteToken),
		BaseToken:      strings.ToLower(req.BaseToken),
		QuoteToken:     strings.ToLower(req.QuoteToken),
		CurveType:      req.CurveType,
		InitialPrice:   req.InitialPrice,
		CurrentPrice:   req.InitialPrice,
		MinPrice:       req.MinPrice,
		MaxPrice:       req.MaxPrice,
		Slope:          req.Slope,
		Exponent:       req.Exponent,
		Multiplier:     req.Multiplier,
		StepConfig:     req.StepConfig,
		MaxDeviation:   req.MaxDeviation,
		TotalInventory: req.TotalInventory,
	}

	if err := h.adaptiveRepository.UpsertAdaptiveOrder(ao); err != nil {
		h.logger.Error("Failed to store adaptive order config", zap.String("order_id", orderID), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to create adaptive order")
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, AdaptiveOrderResponse{
		OrderID:        orderID,
		Network:        ao.Network,
		Pair:           ao.Pair,
		CurveType:      ao.CurveType,
		InitialPrice:   ao.InitialPrice,
		CurrentPrice:   ao.CurrentPrice,
		MinPrice:       ao.MinPrice,
		MaxPrice:       ao.MaxPrice,
		TotalInventory: ao.TotalInventory,
		Status:         order.Status,
	})
}

// GetAdaptiveOrder handles GET /api/adaptive-orders/{network}/{order_id}
func (h *OrderHandler) GetAdaptiveOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	network := vars["network"]
	orderID := vars["order_id"]

	ao, err := h.adaptiveRepository.GetAdaptiveOrderByID(network, orderID)
	if err != nil {
		h.logger.Error("Failed to get adaptive order", zap.String("order_id", orderID), zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "database_error", "Failed to retrieve adaptive order")
		return
	}
	if ao == nil {
		h.writeErrorResponse(w, http.StatusNotFound, "adaptive_order_not_found", "Adaptive order not found")
		return
	}

	status := ""
	order, err := h.orderRepository.GetOrderByID(network, orderID)
	if err != nil {
		h.logger.Error("Failed to get order for adaptive order", zap.String("order_id", orderID), zap.Error(err))
	} else if order != nil {
		status = order.Status
	}

	h.writeJSONResponse(w, http.StatusOK, AdaptiveOrderResponse{
		OrderID:        ao.OrderID,
		Network:        ao.Network,
		Pair:           ao.Pair,
		CurveType:      ao.CurveType,
		InitialPrice:   ao.InitialPrice,
		CurrentPrice:   ao.CurrentPrice,
		MinPrice:       ao.MinPrice,
		MaxPrice:       ao.MaxPrice,
		TotalInventory: ao.TotalInventory,
		SoldAmount:     ao.SoldAmount,
		AvgFillPrice:   ao.AvgFillPrice,
		Status:         status,
		CreatedAt:      ao.CreatedAt,
	})
}

func validateAdaptiveOrderRequest(req AdaptiveOrderRequest) string {
	switch {
	case req.Network == "":
		return "Network is required"
	case req.Maker == "":
		return "Maker is required"
	case req.BaseToken == "" || req.QuoteToken == "":
		return "Base and quote token addresses are required"
	case req.TokenIn == "" || req.TokenOut == "":
		return "Template token addresses are required"
	case req.Signature == "":
		return "Signature is required"
	case req.Salt == "":
		return "Salt is required"
	case req.Receiver == "":
		return "Receiver is required"
	case req.InitialPrice <= 0:
		return "Initial price must be positive"
	case req.TotalInventory <= 0:
		return "Total inventory must be positive"
	}

	switch req.CurveType {
	case model.CurveLinear, model.CurveExponential, model.CurveStepwise:
	case model.CurveMarketTracking:
		if req.MaxDeviation <= 0 {
			return "Max deviation must be positive for market tracking curves"
		}
	default:
		return "Curve type must be linear, exponential, stepwise or market_tracking"
	}

	if req.MinPrice != nil && *req.MinPrice <= 0 {
		return "Min price must be positive"
	}
	if req.MaxPrice != nil && *req.MaxPrice <= 0 {
		return "Max price must be positive"
	}
	if req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice {
		return "Min price must not exceed max price"
	}

	if len(req.StepConfig) > 0 {
		var steps []pricing.Step
		if err := json.Unmarshal(req.StepConfig, &steps); err != nil {
			return "Step config must be a list of threshold/multiplier pairs"
		}
		for _, step := range steps {
			if step.Threshold <= 0 || step.Threshold > 1 {
				return "Step thresholds must be in (0, 1]"
			}
			if step.Multiplier <= 0 {
				return "Step multipliers must be positive"
			}
		}
	}

	if amount, ok := new(big.Int).SetString(req.AmountIn, 10); !ok || amount.Sign() <= 0 {
		return "Amount in must be a positive integer string"
	}
	if amount, ok := new(big.Int).SetString(req.AmountOutMin, 10); !ok || amount.Sign() < 0 {
		return "Amount out min must be a non-negative integer string"
	}

	return ""
}
