package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joherrer/stocks/internal/ledger"
	"github.com/joherrer/stocks/internal/types"
	"github.com/joherrer/stocks/pkg/response"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxUsernameLength = 50
	// bcrypt ignores input past 72 bytes
	maxPasswordBytes = 72
)

var ErrTokenGeneration = errors.New("failed to generate token")

// Credentials represents a login request
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration represents a sign-up request
type Registration struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// Service handles registration, login and token validation
type Service struct {
	db           *ledger.Database
	jwtSecret    []byte
	tokenTTL     time.Duration
	startingCash decimal.Decimal
	now          func() time.Time
	logger       zerolog.Logger
}

// NewService creates a new authentication service. New users are credited
// startingCash and issued tokens live for tokenTTL.
func NewService(gormDB *gorm.DB, jwtSecret string, tokenTTL time.Duration, startingCash decimal.Decimal) *Service {
	return &Service{
		db:           ledger.NewDatabase(gormDB),
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
		startingCash: startingCash,
		now:          time.Now,
		logger:       log.With().Str("service", "auth").Logger(),
	}
}

// Register creates a user after checking the password confirmation
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (*ledger.User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, fmt.Errorf("%w: username is required", types.ErrInvalidInput)
	case len(username) > maxUsernameLength:
		return nil, fmt.Errorf("%w: username longer than %d characters", types.ErrInvalidInput, maxUsernameLength)
	case password == "":
		return nil, fmt.Errorf("%w: password is required", types.ErrInvalidInput)
	case len(password) > maxPasswordBytes:
		return nil, fmt.Errorf("%w: password longer than %d bytes", types.ErrInvalidInput, maxPasswordBytes)
	case password != confirmation:
		return nil, fmt.Errorf("%w: passwords do not match", types.ErrInvalidInput)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.db.CreateUser(ctx, username, hash, s.startingCash)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues a signed token
func (s *Service) Login(ctx context.Context, creds Credentials) (*types.TokenResponse, error) {
	user, err := s.db.GetUserByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(user.Hash, creds.Password) {
		s.logger.Warn().Str("username", user.Username).Msg("failed login")
		return nil, types.ErrInvalidCredentials
	}

	return s.GenerateToken(user)
}

// GenerateToken issues an HS256 token for user
func (s *Service) GenerateToken(user *ledger.User) (*types.TokenResponse, error) {
	now := s.now()
	expiration := now.Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		UserID:   user.ID,
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &types.TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != 0 {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterHandler handles POST requests creating a new user
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Registration
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		user, err := h.service.Register(c.Request.Context(), req.Username, req.Password, req.Confirmation)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, types.UserResponse{
			ID:        user.ID,
			Username:  user.Username,
			Cash:      user.Cash,
			CreatedAt: user.CreatedAt,
		})
	}
}

// LoginHandler handles POST requests exchanging credentials for a token
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.Login(c.Request.Context(), creds)
		response.Handle(c, token, err)
	}
}
