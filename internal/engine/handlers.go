package engine

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ksred/paper-exchange/internal/types"
	"github.com/ksred/paper-exchange/pkg/response"
)

// GinHandlers contains HTTP handlers for order and portfolio endpoints
type GinHandlers struct {
	engine *Engine
}

// NewGinHandlers creates a new set of HTTP handlers for the engine
func NewGinHandlers(engine *Engine) *GinHandlers {
	return &GinHandlers{
		engine: engine,
	}
}

// PlaceOrderHandler handles POST requests to place new orders
// The returned order is PENDING; settlement happens asynchronously
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.OrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.engine.PlaceOrder(req)
		response.Handle(c, order, err)
	}
}

// GetOrderHandler handles GET requests for a single order's status
// URL parameter: order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderIDParam(c)
		if !ok {
			return
		}

		order, err := h.engine.GetOrder(id)
		response.Handle(c, order, err)
	}
}

// CancelOrderHandler handles DELETE requests to cancel an order
// URL parameter: order_id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderIDParam(c)
		if !ok {
			return
		}

		order, err := h.engine.CancelOrder(id)
		response.Handle(c, order, err)
	}
}

// ActiveOrdersHandler handles GET requests for pending and open orders
func (h *GinHandlers) ActiveOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.engine.GetActiveOrders())
	}
}

// OrderHistoryHandler handles GET requests for the full order history
func (h *GinHandlers) OrderHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.engine.GetOrderHistory())
	}
}

// BalanceHandler handles GET requests for currency balances
func (h *GinHandlers) BalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.engine.GetBalance())
	}
}

// PositionsHandler handles GET requests for open positions marked to
// current prices
func (h *GinHandlers) PositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.engine.GetPositions(c.Request.Context()))
	}
}

// PortfolioHandler handles GET requests for the portfolio summary
func (h *GinHandlers) PortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.engine.GetPortfolioSummary(c.Request.Context()))
	}
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "order_id must be an integer")
		return 0, false
	}
	return id, true
}
