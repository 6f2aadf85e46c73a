package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joherrer/stocks/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(method string, data interface{}, err error) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/api/v1/test", nil)

	Handle(c, data, err)

	var body Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "UnknownSymbol", err: fmt.Errorf("%w: ZZZZ", types.ErrUnknownSymbol), wantStatus: http.StatusBadRequest, wantCode: ErrCodeUnknownSymbol},
		{name: "QuoteTransport", err: fmt.Errorf("%w: %w", types.ErrUnknownSymbol, types.ErrPriceUnavailable), wantStatus: http.StatusBadRequest, wantCode: ErrCodeUnknownSymbol},
		{name: "PriceUnavailable", err: fmt.Errorf("valuing AAPL: %w", types.ErrPriceUnavailable), wantStatus: http.StatusServiceUnavailable, wantCode: ErrCodePriceUnavailable},
		{name: "InvalidShareCount", err: types.ErrInvalidShareCount, wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidationFailed},
		{name: "InvalidAmount", err: types.ErrInvalidAmount, wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidationFailed},
		{name: "InvalidInput", err: fmt.Errorf("%w: passwords do not match", types.ErrInvalidInput), wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidationFailed},
		{name: "InsufficientFunds", err: types.ErrInsufficientFunds, wantStatus: http.StatusUnprocessableEntity, wantCode: ErrCodeInsufficientFunds},
		{name: "InsufficientShares", err: types.ErrInsufficientShares, wantStatus: http.StatusUnprocessableEntity, wantCode: ErrCodeInsufficientShare},
		{name: "NotFound", err: types.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: ErrCodeNotFound},
		{name: "Duplicate", err: types.ErrDuplicateUsername, wantStatus: http.StatusConflict, wantCode: ErrCodeDuplicateResource},
		{name: "Credentials", err: types.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized, wantCode: ErrCodeUnauthorized},
		{name: "Storage", err: &types.StorageError{Op: "update cash", Err: errors.New("disk full")}, wantStatus: http.StatusInternalServerError, wantCode: ErrCodeInternalError},
		{name: "Unmapped", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := perform(http.MethodGet, nil, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestHandle_StorageDetailHidden(t *testing.T) {
	w, body := perform(http.MethodGet, nil, &types.StorageError{Op: "append transaction", Err: errors.New("secret path /var/db")})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret path")
	assert.Equal(t, "An unexpected error occurred", body.Error.Message)
}

func TestHandle_Success(t *testing.T) {
	w, body := perform(http.MethodGet, map[string]string{"symbol": "AAPL"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)

	w, _ = perform(http.MethodPost, map[string]string{"symbol": "AAPL"}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	TooManyRequests(c, "slow down")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), ErrCodeRateLimited)
}
