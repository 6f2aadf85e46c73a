package server

import (
	"github.com/gin-gonic/gin"
	"github.com/joherrer/stocks/internal/auth"
	"github.com/joherrer/stocks/internal/portfolio"
	"github.com/joherrer/stocks/pkg/middleware"
	"github.com/joherrer/stocks/pkg/response"
)

// Options toggles optional middleware
type Options struct {
	RateLimit bool
}

// NewRouter wires every API route onto a fresh gin engine
func NewRouter(authService *auth.Service, portfolioService *portfolio.Service, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.NoCache())

	setupRoutes(router, opts, authService, auth.NewGinHandlers(authService), portfolio.NewGinHandlers(portfolioService))
	return router
}

// setupRoutes configures all API endpoints and their handlers
// Auth routes are public and limited per client IP; account routes require
// a JWT and are limited per user
func setupRoutes(
	router *gin.Engine,
	opts Options,
	validator middleware.TokenValidator,
	authHandlers *auth.GinHandlers,
	portfolioHandlers *portfolio.GinHandlers,
) {
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		if opts.RateLimit {
			auth.Use(middleware.RateLimit())
		}
		{
			auth.POST("/register", authHandlers.RegisterHandler())
			auth.POST("/login", authHandlers.LoginHandler())
		}

		// Account routes
		account := v1.Group("")
		account.Use(middleware.JWTAuth(validator))
		if opts.RateLimit {
			account.Use(middleware.RateLimit())
		}
		{
			account.GET("/quote/:symbol", portfolioHandlers.QuoteHandler())

			account.GET("/portfolio", portfolioHandlers.PortfolioHandler())
			account.GET("/portfolio/net-worth", portfolioHandlers.NetWorthHandler())
			account.GET("/portfolio/sellable", portfolioHandlers.SellableHandler())

			account.POST("/trades/buy", portfolioHandlers.BuyHandler())
			account.POST("/trades/sell", portfolioHandlers.SellHandler())

			account.GET("/history", portfolioHandlers.HistoryHandler())

			account.GET("/cash", portfolioHandlers.CashHandler())
			account.POST("/cash", portfolioHandlers.DepositHandler())
		}
	}
}
