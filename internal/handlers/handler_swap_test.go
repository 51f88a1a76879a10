package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/handlers"
	"github.com/SscSPs/takas_swap_engine/internal/middleware"
)

// --- Test Suite ---
type SwapHandlerTestSuite struct {
	suite.Suite
	router          *gin.Engine
	mockSwapService *MockSwapService
	guardCalls      int
	guardBlocks     bool
}

func TestSwapHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(SwapHandlerTestSuite))
}

func (suite *SwapHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.guardCalls = 0
	suite.guardBlocks = false

	suite.mockSwapService = new(MockSwapService)

	guard := func(c *gin.Context) {
		suite.guardCalls++
		if suite.guardBlocks {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}
		c.Next()
	}

	v1 := suite.router.Group("/api/v1", middleware.AuthMiddleware(testJWTSecret, "takas-test"))
	handlers.RegisterSwapRoutes(v1, suite.mockSwapService, guard)
}

func (suite *SwapHandlerTestSuite) TearDownTest() {
	suite.mockSwapService.AssertExpectations(suite.T())
}

func (suite *SwapHandlerTestSuite) request(method, path, userID, role string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := generateTestToken(userID, role)
		suite.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)
	return rec
}

func (suite *SwapHandlerTestSuite) decodeError(rec *httptest.ResponseRecorder) dto.ErrorResponse {
	var body dto.ErrorResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sampleSwap(status domain.SwapStatus) *domain.SwapRequest {
	return &domain.SwapRequest{
		SwapID:       "swap-1",
		RequesterID:  "alice",
		OwnerID:      "bob",
		ProductID:    "lamp",
		ProductValue: 400,
		Status:       status,
		Legs: domain.SwapLegs{
			A: domain.LegState{Side: domain.LegA, ProductID: "lamp", GiverID: "bob", ReceiverID: "alice"},
		},
	}
}

var (
	alice = domain.Actor{UserID: "alice"}
	bob   = domain.Actor{UserID: "bob"}
)

// --- Test Cases ---

func (suite *SwapHandlerTestSuite) TestRequiresToken() {
	rec := suite.request(http.MethodGet, "/api/v1/swaps/swap-1", "", "", nil)
	suite.Equal(http.StatusUnauthorized, rec.Code)
}

func (suite *SwapHandlerTestSuite) TestCreateOffer_Success() {
	price := int64(400)
	req := dto.CreateOfferRequest{ProductID: "lamp", ProposedPrice: &price}
	suite.mockSwapService.On("CreateOffer", mock.AnythingOfType("*context.valueCtx"), alice, req).
		Return(sampleSwap(domain.StatusPending), nil).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps", "alice", "", req)
	suite.Require().Equal(http.StatusCreated, rec.Code)

	var resp dto.SwapResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	suite.Equal("swap-1", resp.SwapID)
	suite.Equal(domain.StatusPending, resp.Status)
	suite.False(resp.DualSided)
	suite.Len(resp.Legs, 1)
}

func (suite *SwapHandlerTestSuite) TestCreateOffer_BindError() {
	rec := suite.request(http.MethodPost, "/api/v1/swaps", "alice", "", map[string]any{"proposedPrice": 10})
	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal(string(apperrors.KindValidation), suite.decodeError(rec).Kind)
	suite.mockSwapService.AssertNotCalled(suite.T(), "CreateOffer", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *SwapHandlerTestSuite) TestCreateOffer_Ineligible() {
	req := dto.CreateOfferRequest{ProductID: "lamp"}
	refusal := apperrors.New(apperrors.KindForbidden, "at least 1 active listing(s) required before offering a swap").
		WithDetails(map[string]any{"reason": "not_enough_active_listings"})
	suite.mockSwapService.On("CreateOffer", mock.Anything, alice, req).Return(nil, refusal).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps", "alice", "", req)
	suite.Equal(http.StatusForbidden, rec.Code)
	body := suite.decodeError(rec)
	suite.Equal("forbidden", body.Kind)
	suite.Equal("not_enough_active_listings", body.Details["reason"])
}

func (suite *SwapHandlerTestSuite) TestListSwaps_BindsQuery() {
	params := dto.ListSwapsParams{Status: "delivered", Limit: 5}
	suite.mockSwapService.On("ListSwaps", mock.Anything, alice, params).
		Return(&dto.ListSwapsResponse{Swaps: []dto.SwapResponse{dto.ToSwapResponse(sampleSwap(domain.StatusDelivered))}}, nil).Once()

	rec := suite.request(http.MethodGet, "/api/v1/swaps?status=delivered&limit=5", "alice", "", nil)
	suite.Equal(http.StatusOK, rec.Code)

	rec = suite.request(http.MethodGet, "/api/v1/swaps?status=lost", "alice", "", nil)
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *SwapHandlerTestSuite) TestGetSwap_NotFound() {
	suite.mockSwapService.On("GetSwap", mock.Anything, alice, "missing").
		Return(nil, apperrors.Newf(apperrors.KindNotFound, "swap %s not found", "missing")).Once()

	rec := suite.request(http.MethodGet, "/api/v1/swaps/missing", "alice", "", nil)
	suite.Equal(http.StatusNotFound, rec.Code)
	suite.Equal("swap missing not found", suite.decodeError(rec).Error)
}

func (suite *SwapHandlerTestSuite) TestProposeAndAcceptPrice() {
	agreed := sampleSwap(domain.StatusPending)
	agreed.NegotiationStatus = domain.NegotiationAgreed
	suite.mockSwapService.On("ProposePrice", mock.Anything, bob, "swap-1", dto.ProposePriceRequest{Price: 450}).
		Return(sampleSwap(domain.StatusPending), nil).Once()
	suite.mockSwapService.On("AcceptPrice", mock.Anything, alice, "swap-1").Return(agreed, nil).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/price", "bob", "", dto.ProposePriceRequest{Price: 450})
	suite.Equal(http.StatusOK, rec.Code)

	rec = suite.request(http.MethodPost, "/api/v1/swaps/swap-1/price/accept", "alice", "", nil)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), string(domain.NegotiationAgreed))

	rec = suite.request(http.MethodPost, "/api/v1/swaps/swap-1/price", "bob", "", map[string]any{"price": -3})
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *SwapHandlerTestSuite) TestConfirm_InsufficientFunds() {
	shortfall := apperrors.New(apperrors.KindInsufficientFunds, "insufficient available Valor for the deposit").
		WithDetails(map[string]any{"required": 40, "available": 10})
	suite.mockSwapService.On("ConfirmSwap", mock.Anything, bob, "swap-1").Return(nil, shortfall).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/confirm", "bob", "", nil)
	suite.Equal(http.StatusUnprocessableEntity, rec.Code)
	body := suite.decodeError(rec)
	suite.Equal("insufficient_funds", body.Kind)
	suite.EqualValues(40, body.Details["required"])
}

func (suite *SwapHandlerTestSuite) TestReject_AdminWithoutBody() {
	admin := domain.Actor{UserID: "ops", IsAdmin: true}
	suite.mockSwapService.On("RejectSwap", mock.Anything, admin, "swap-1", dto.CloseSwapRequest{}).
		Return(sampleSwap(domain.StatusRejected), nil).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/reject", "ops", middleware.RoleAdmin, nil)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), `"status":"rejected"`)
}

func (suite *SwapHandlerTestSuite) TestCancel_AfterScanConflicts() {
	req := dto.CloseSwapRequest{Reason: "changed my mind"}
	suite.mockSwapService.On("CancelSwap", mock.Anything, alice, "swap-1", req).
		Return(nil, apperrors.New(apperrors.KindInvalidState, "delivery already started")).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/cancel", "alice", "", req)
	suite.Equal(http.StatusConflict, rec.Code)
	suite.Equal("invalid_state", suite.decodeError(rec).Kind)
}

func (suite *SwapHandlerTestSuite) TestScan_WrongSideIsForbidden() {
	req := dto.ScanQRRequest{QRToken: "swap-1.A.nonce.mac"}
	wrong := apperrors.New(apperrors.KindForbidden, "this QR code must be scanned by the receiver of leg A").
		WithDetails(map[string]any{"side": "A", "receiverRole": "requester"})
	suite.mockSwapService.On("ScanQR", mock.Anything, bob, "swap-1", req).Return(nil, wrong).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/scan", "bob", "", req)
	suite.Equal(http.StatusForbidden, rec.Code)
	body := suite.decodeError(rec)
	suite.Equal("A", body.Details["side"])
	suite.Equal("requester", body.Details["receiverRole"])
	suite.Equal(1, suite.guardCalls)
}

func (suite *SwapHandlerTestSuite) TestScan_AlreadyScannedIsOK() {
	req := dto.ScanQRRequest{QRToken: "swap-1.A.nonce.mac"}
	suite.mockSwapService.On("ScanQR", mock.Anything, alice, "swap-1", req).Return(&dto.ScanResult{
		Swap:           dto.ToSwapResponse(sampleSwap(domain.StatusQRScanned)),
		Side:           domain.LegA,
		AlreadyScanned: true,
		Message:        "already scanned",
	}, nil).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/scan", "alice", "", req)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), `"alreadyScanned":true`)
}

func (suite *SwapHandlerTestSuite) TestDeliveryGuard_Blocks() {
	suite.guardBlocks = true
	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/verify", "alice", "", dto.VerifyDeliveryRequest{Code: "123456"})
	suite.Equal(http.StatusTooManyRequests, rec.Code)
	suite.Equal(1, suite.guardCalls)
	suite.mockSwapService.AssertNotCalled(suite.T(), "VerifyDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *SwapHandlerTestSuite) TestVerify_ExpiredCode() {
	req := dto.VerifyDeliveryRequest{Side: domain.LegA, Code: "123456", Photos: []string{"p1"}}
	suite.mockSwapService.On("VerifyDelivery", mock.Anything, alice, "swap-1", req).
		Return(nil, apperrors.New(apperrors.KindExpired, "verification code expired, request a new one")).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/verify", "alice", "", req)
	suite.Equal(http.StatusGone, rec.Code)
	suite.Equal("expired", suite.decodeError(rec).Kind)
}

func (suite *SwapHandlerTestSuite) TestVerify_MalformedCode() {
	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/verify", "alice", "", map[string]any{"code": "12ab"})
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *SwapHandlerTestSuite) TestReissueCode() {
	req := dto.ReissueCodeRequest{Side: domain.LegA}
	suite.mockSwapService.On("ReissueCode", mock.Anything, bob, "swap-1", req).
		Return(&dto.ReissueCodeResponse{SwapID: "swap-1", Side: domain.LegA}, nil).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/code/reissue", "bob", "", req)
	suite.Equal(http.StatusOK, rec.Code)
	suite.NotContains(rec.Body.String(), "code\":")
}

func (suite *SwapHandlerTestSuite) TestGetDeliveryQR() {
	suite.mockSwapService.On("GetDeliveryQR", mock.Anything, bob, "swap-1").
		Return(&dto.DeliveryQRResponse{SwapID: "swap-1", Codes: []dto.DeliveryQR{}}, nil).Once()

	rec := suite.request(http.MethodGet, "/api/v1/swaps/swap-1/qr", "bob", "", nil)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal(0, suite.guardCalls, "only scan, verify and reissue are guarded")
}

func (suite *SwapHandlerTestSuite) TestComplete_InternalErrorIsMasked() {
	cause := errors.New("pq: connection reset by peer")
	suite.mockSwapService.On("CompleteSwap", mock.Anything, alice, "swap-1").
		Return(nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to settle swap", cause)).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/complete", "alice", "", nil)
	suite.Equal(http.StatusInternalServerError, rec.Code)
	body := suite.decodeError(rec)
	suite.Equal("Failed to complete swap", body.Error)
	suite.NotContains(rec.Body.String(), "connection reset")
}

func (suite *SwapHandlerTestSuite) TestDispute() {
	req := dto.DisputeRequest{Reason: "the lamp is broken"}
	disputed := sampleSwap(domain.StatusDisputed)
	suite.mockSwapService.On("RaiseDispute", mock.Anything, alice, "swap-1", req).Return(disputed, nil).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/swap-1/dispute", "alice", "", req)
	suite.Equal(http.StatusOK, rec.Code)

	rec = suite.request(http.MethodPost, "/api/v1/swaps/swap-1/dispute", "alice", "", map[string]any{})
	suite.Equal(http.StatusBadRequest, rec.Code, "a reason is required")
}

func (suite *SwapHandlerTestSuite) TestListSwapEvents() {
	suite.mockSwapService.On("ListSwapEvents", mock.Anything, alice, "swap-1").
		Return([]domain.SwapEvent{{EventID: "e1", SwapID: "swap-1", Type: domain.EventOfferCreated}}, nil).Once()

	rec := suite.request(http.MethodGet, "/api/v1/swaps/swap-1/events", "alice", "", nil)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), string(domain.EventOfferCreated))
}

func (suite *SwapHandlerTestSuite) TestPreviewDeposit() {
	req := dto.DepositPreviewRequest{ProductID: "lamp"}
	suite.mockSwapService.On("PreviewDeposit", mock.Anything, alice, req).
		Return(&dto.DepositPreviewResponse{BaseValue: 400, Rate: "0.1", RequiredDeposit: 40, Available: 3000, CanAfford: true}, nil).Once()

	rec := suite.request(http.MethodPost, "/api/v1/swaps/deposit-preview", "alice", "", req)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), `"requiredDeposit":40`)
}
