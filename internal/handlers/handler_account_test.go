package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/takas_swap_engine/internal/apperrors"
	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/handlers"
	"github.com/SscSPs/takas_swap_engine/internal/middleware"
)

type AccountHandlerTestSuite struct {
	suite.Suite
	router                 *gin.Engine
	mockAccountService     *MockAccountService
	mockEligibilityService *MockEligibilityService
}

func TestAccountHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AccountHandlerTestSuite))
}

func (suite *AccountHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.mockAccountService = new(MockAccountService)
	suite.mockEligibilityService = new(MockEligibilityService)

	v1 := suite.router.Group("/api/v1", middleware.AuthMiddleware(testJWTSecret, ""))
	handlers.RegisterAccountRoutes(v1, suite.mockAccountService)
	handlers.RegisterEligibilityRoutes(v1, suite.mockEligibilityService)
}

func (suite *AccountHandlerTestSuite) TearDownTest() {
	suite.mockAccountService.AssertExpectations(suite.T())
	suite.mockEligibilityService.AssertExpectations(suite.T())
}

func (suite *AccountHandlerTestSuite) get(path, userID, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	token, err := generateTestToken(userID, role)
	suite.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)
	return rec
}

func (suite *AccountHandlerTestSuite) TestGetMyAccount() {
	acc := &domain.Account{UserID: "alice", ValorBalance: 3000, LockedValor: 200, TrustLevel: domain.TrustVerified}
	suite.mockAccountService.On("GetAccount", mock.AnythingOfType("*context.valueCtx"), "alice").Return(acc, nil).Once()

	rec := suite.get("/api/v1/accounts/me", "alice", "")
	suite.Require().Equal(http.StatusOK, rec.Code)

	var resp dto.AccountResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	suite.Equal(int64(2800), resp.Available)
	suite.Equal(domain.TrustVerified, resp.TrustLevel)
}

func (suite *AccountHandlerTestSuite) TestGetMyAccount_NotProvisioned() {
	suite.mockAccountService.On("GetAccount", mock.Anything, "newbie").
		Return(nil, apperrors.Newf(apperrors.KindNotFound, "account for user %s not found", "newbie")).Once()

	rec := suite.get("/api/v1/accounts/me", "newbie", "")
	suite.Equal(http.StatusNotFound, rec.Code)
}

func (suite *AccountHandlerTestSuite) TestListMyLedger() {
	next := "token-2"
	params := dto.ListLedgerParams{Limit: 2}
	suite.mockAccountService.On("ListLedger", mock.Anything, "alice", params).Return(&dto.ListLedgerResponse{
		Entries: dto.ToLedgerEntryResponses([]domain.LedgerEntry{
			{EntryID: "l2", UserID: "alice", Type: domain.EntryRelease, Amount: 40, CreatedAt: time.Now()},
			{EntryID: "l1", UserID: "alice", Type: domain.EntryFreeze, Amount: 40, CreatedAt: time.Now()},
		}),
		NextToken: &next,
	}, nil).Once()

	rec := suite.get("/api/v1/accounts/me/ledger?limit=2", "alice", "")
	suite.Require().Equal(http.StatusOK, rec.Code)

	var resp dto.ListLedgerResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	suite.Len(resp.Entries, 2)
	suite.Require().NotNil(resp.NextToken)
	suite.Equal("token-2", *resp.NextToken)

	rec = suite.get("/api/v1/accounts/me/ledger?limit=500", "alice", "")
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *AccountHandlerTestSuite) TestListSwapLedger() {
	admin := domain.Actor{UserID: "ops", IsAdmin: true}
	suite.mockAccountService.On("ListSwapLedger", mock.Anything, admin, "swap-1").
		Return([]domain.LedgerEntry{{EntryID: "l1", SwapRequestID: "swap-1", Type: domain.EntryFreeze, Amount: 40}}, nil).Once()
	suite.mockAccountService.On("ListSwapLedger", mock.Anything, domain.Actor{UserID: "carol"}, "swap-1").
		Return(nil, apperrors.New(apperrors.KindForbidden, "not a party to this swap")).Once()

	rec := suite.get("/api/v1/swaps/swap-1/ledger", "ops", middleware.RoleAdmin)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), `"entryID":"l1"`)

	rec = suite.get("/api/v1/swaps/swap-1/ledger", "carol", "")
	suite.Equal(http.StatusForbidden, rec.Code)
}

func (suite *AccountHandlerTestSuite) TestCheckEligibility() {
	query := dto.EligibilityQuery{ProductID: "lamp"}
	suite.mockEligibilityService.On("CheckEligibility", mock.Anything, "carol", query).Return(&domain.EligibilityResult{
		Reason:  domain.ReasonNotEnoughListings,
		Message: "at least 1 active listing(s) required before offering a swap",
	}, nil).Once()

	rec := suite.get("/api/v1/eligibility?productID=lamp", "carol", "")
	suite.Require().Equal(http.StatusOK, rec.Code, "a refusal is advisory")

	var result domain.EligibilityResult
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	suite.False(result.Allowed)
	suite.Equal(domain.ReasonNotEnoughListings, result.Reason)
}
