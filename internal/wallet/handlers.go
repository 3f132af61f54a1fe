package wallet

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ksred/paper-exchange/pkg/response"
)

// GinHandlers contains HTTP handlers for wallet endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for wallet endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type depositRequest struct {
	Currency string  `json:"currency" binding:"required"`
	Amount   float64 `json:"amount" binding:"required"`
}

type withdrawRequest struct {
	Currency string  `json:"currency" binding:"required"`
	Amount   float64 `json:"amount" binding:"required"`
	Address  string  `json:"address" binding:"required"`
}

// DepositHandler handles POST requests to credit a currency
func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req depositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		txn, err := h.service.Deposit(req.Currency, req.Amount)
		response.Handle(c, txn, err)
	}
}

// WithdrawHandler handles POST requests to debit a currency
func (h *GinHandlers) WithdrawHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req withdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		txn, err := h.service.Withdraw(req.Currency, req.Amount, req.Address)
		response.Handle(c, txn, err)
	}
}

// TransactionHistoryHandler handles GET requests for the transaction log
// Query parameter: limit (optional, caps the number of records returned)
func (h *GinHandlers) TransactionHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				response.BadRequest(c, "limit must be a non-negative integer")
				return
			}
			limit = parsed
		}

		response.Success(c, h.service.GetTransactionHistory(limit))
	}
}
