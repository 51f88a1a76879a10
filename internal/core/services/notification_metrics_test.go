package services_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/SscSPs/takas_swap_engine/internal/adapters/queue"
	"github.com/SscSPs/takas_swap_engine/internal/core/services"
	"github.com/SscSPs/takas_swap_engine/internal/dto"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
	"github.com/SscSPs/takas_swap_engine/internal/utils"
)

type stubInserter struct {
	inserted int
	err      error
}

func (s *stubInserter) InsertMany(_ context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.inserted += len(params)
	return make([]*rivertype.JobInsertResult, len(params)), nil
}

// riverBackedService wires the swap service to a RiverNotifier sharing its collectors, as main does.
func (suite *SwapServiceTestSuite) riverBackedService(ins *stubInserter) func() string {
	signer, err := utils.NewQRSigner("test-qr-signing-secret")
	suite.Require().NoError(err)

	collectors := metrics.New()
	escrow := services.NewEscrowService(suite.store, suite.store, suite.store,
		services.WithClock(suite.clock.Now), services.WithMetrics(collectors))
	suite.svc = services.NewSwapService(suite.store.provider(), escrow, signer, suite.settings,
		services.WithNotifier(queue.NewRiverNotifier(ins, collectors)),
		services.WithSwapClock(suite.clock.Now),
		services.WithSwapMetrics(collectors),
	)

	return func() string {
		rec := httptest.NewRecorder()
		collectors.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return rec.Body.String()
	}
}

func (suite *SwapServiceTestSuite) TestNotificationsCountedOncePerMessage() {
	ins := &stubInserter{}
	scrape := suite.riverBackedService(ins)

	_, err := suite.svc.CreateOffer(suite.ctx, aliceActor, dto.CreateOfferRequest{ProductID: lamp})
	suite.Require().NoError(err)
	suite.Equal(1, ins.inserted)

	out := scrape()
	suite.Contains(out, `takas_notifications_total{kind="offer_received",outcome="enqueued"} 1`)
}

func (suite *SwapServiceTestSuite) TestNotificationEnqueueFailureCountedOnce() {
	ins := &stubInserter{err: errors.New("queue unavailable")}
	scrape := suite.riverBackedService(ins)

	_, err := suite.svc.CreateOffer(suite.ctx, aliceActor, dto.CreateOfferRequest{ProductID: lamp})
	suite.Require().NoError(err)

	out := scrape()
	suite.Contains(out, `takas_notifications_total{kind="offer_received",outcome="enqueue_failed"} 1`)
}
