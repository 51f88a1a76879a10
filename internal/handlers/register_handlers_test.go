package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/handlers"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
	"github.com/SscSPs/takas_swap_engine/internal/platform/config"
)

func newEngine(t *testing.T, production bool, lim *limiter.Limiter) (*gin.Engine, *MockSwapService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	swaps := new(MockSwapService)
	services := &portssvc.ServiceContainer{
		Swap:        swaps,
		Account:     new(MockAccountService),
		Eligibility: new(MockEligibilityService),
	}
	cfg := &config.Config{JWTSecret: testJWTSecret, IsProduction: production}
	r := gin.New()
	handlers.RegisterRoutes(r, cfg, services, metrics.New(), lim)
	return r, swaps
}

func serve(r http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRoutes_PublicEndpoints(t *testing.T) {
	r, _ := newEngine(t, false, nil)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)

	rec := serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "takas_")

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/accounts/me", "").Code)
	assert.NotEqual(t, http.StatusNotFound, serve(r, http.MethodGet, "/swagger/index.html", "").Code)
}

func TestRegisterRoutes_NoSwaggerInProduction(t *testing.T) {
	r, _ := newEngine(t, true, nil)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/swagger/index.html", "").Code)
}

func TestRegisterRoutes_DeliveryEndpointsAreRateLimited(t *testing.T) {
	lim := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 1})
	r, swaps := newEngine(t, true, lim)
	swaps.On("GetDeliveryQR", mock.Anything, mock.Anything, "swap-1").
		Return(&dto.DeliveryQRResponse{SwapID: "swap-1"}, nil)

	token, err := generateTestToken("alice", "")
	require.NoError(t, err)

	// malformed bodies still count against the limit
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/api/v1/swaps/swap-1/verify", token).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/api/v1/swaps/swap-1/verify", token).Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/swaps/swap-1/qr", token).Code)
	}
}
