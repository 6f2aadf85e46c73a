package portfolio

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joherrer/stocks/internal/ledger"
	"github.com/joherrer/stocks/internal/types"
	"github.com/joherrer/stocks/pkg/response"
	"github.com/shopspring/decimal"
)

// numericText holds a JSON number or string as its literal text so that
// the boundary parsers see exactly what the client sent.
type numericText string

func (n *numericText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = numericText(s)
		return nil
	}
	*n = numericText(strings.TrimSpace(string(b)))
	return nil
}

// TradeRequest is the body of a buy or sell
type TradeRequest struct {
	Symbol string      `json:"symbol"`
	Shares numericText `json:"shares"`
}

// DepositRequest is the body of a cash deposit
type DepositRequest struct {
	Amount numericText `json:"amount"`
}

// GinHandlers contains HTTP handlers for quote, trade and portfolio endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for portfolio endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// QuoteHandler handles GET requests for the current price of a ticker
// URL parameter: symbol
func (h *GinHandlers) QuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, err := h.service.Quote(c.Request.Context(), c.Param("symbol"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, types.QuoteResponse{
			Symbol:  quote.Symbol,
			Price:   quote.Price,
			Display: types.FormatUSD(quote.Price),
		})
	}
}

// BuyHandler handles POST requests to buy shares
func (h *GinHandlers) BuyHandler() gin.HandlerFunc {
	return h.tradeHandler(h.service.Buy)
}

// SellHandler handles POST requests to sell shares
func (h *GinHandlers) SellHandler() gin.HandlerFunc {
	return h.tradeHandler(h.service.Sell)
}

type tradeFunc func(ctx context.Context, userID uint, ticker string, shares int64) (*ledger.Transaction, error)

func (h *GinHandlers) tradeHandler(trade tradeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		var req TradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		shares, err := ParseShares(string(req.Shares))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		txn, err := trade(c.Request.Context(), userID, req.Symbol, shares)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, toTradeResponse(txn))
	}
}

// PortfolioHandler handles GET requests for positions valued at live prices
func (h *GinHandlers) PortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		summary, err := h.service.Portfolio(c.Request.Context(), userID)
		response.Handle(c, summary, err)
	}
}

// NetWorthHandler handles GET requests for cash plus holdings at live prices
func (h *GinHandlers) NetWorthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		total, err := h.service.NetWorth(c.Request.Context(), userID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, balance(total))
	}
}

// SellableHandler handles GET requests for tickers with a positive holding
func (h *GinHandlers) SellableHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		tickers, err := h.service.SellableTickers(c.Request.Context(), userID)
		response.Handle(c, tickers, err)
	}
}

// HistoryHandler handles GET requests for the user's transaction history
func (h *GinHandlers) HistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		entries, err := h.service.History(c.Request.Context(), userID)
		response.Handle(c, entries, err)
	}
}

// CashHandler handles GET requests for the cash balance
func (h *GinHandlers) CashHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		cash, err := h.service.Cash(c.Request.Context(), userID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, balance(cash))
	}
}

// DepositHandler handles POST requests adding cash to the balance
func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		amount, err := ParseAmount(string(req.Amount))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		user, err := h.service.DepositCash(c.Request.Context(), userID, amount)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, balance(user.Cash))
	}
}

// currentUser reads the authenticated user ID set by the JWT middleware
func currentUser(c *gin.Context) (uint, bool) {
	userID := c.GetUint("userID")
	if userID == 0 {
		response.Unauthorized(c, "Missing authenticated user")
		return 0, false
	}
	return userID, true
}

func balance(amount decimal.Decimal) types.BalanceResponse {
	return types.BalanceResponse{
		Amount:  types.RoundCash(amount),
		Display: types.FormatUSD(amount),
	}
}

func toTradeResponse(txn *ledger.Transaction) types.TradeResponse {
	side := SideBuy
	if txn.Shares < 0 {
		side = SideSell
	}
	return types.TradeResponse{
		Reference:  txn.Reference,
		Symbol:     txn.Symbol,
		Side:       string(side),
		Shares:     txn.Shares,
		Price:      txn.Price,
		Total:      types.RoundCash(txn.Price.Mul(decimal.NewFromInt(txn.Shares)).Abs()),
		ExecutedAt: txn.CreatedAt,
	}
}
