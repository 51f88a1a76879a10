package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, note domain.Notification) error {
	return m.Called(ctx, note).Error(0)
}

type mockInserter struct {
	mock.Mock
}

func (m *mockInserter) InsertMany(ctx context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error) {
	args := m.Called(ctx, params)
	res, _ := args.Get(0).([]*rivertype.JobInsertResult)
	return res, args.Error(1)
}

func notificationJob(note domain.Notification, attempt int) *river.Job[NotificationArgs] {
	return &river.Job[NotificationArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Attempt: attempt, Kind: NotificationArgs{}.Kind()},
		Args:   NotificationArgs{Notification: note},
	}
}

func TestNotificationWorker_Work(t *testing.T) {
	note := domain.InApp(domain.NotifySwapAccepted, "user-b", "swap-1", nil)

	t.Run("delivered", func(t *testing.T) {
		collectors := metrics.New()
		dispatcher := new(mockDispatcher)
		dispatcher.On("Dispatch", mock.Anything, note).Return(nil).Once()

		w := NewNotificationWorker(dispatcher, collectors)
		require.NoError(t, w.Work(context.Background(), notificationJob(note, 1)))

		dispatcher.AssertExpectations(t)
		n, err := testutil.GatherAndCount(collectors.Registry(), "takas_notifications_total")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("failure is returned so river retries", func(t *testing.T) {
		dispatcher := new(mockDispatcher)
		dispatcher.On("Dispatch", mock.Anything, note).Return(errors.New("gateway down")).Once()

		w := NewNotificationWorker(dispatcher, nil)
		err := w.Work(context.Background(), notificationJob(note, 3))
		assert.EqualError(t, err, "gateway down")
	})
}

func TestNotificationArgs_InsertOpts(t *testing.T) {
	opts := NotificationArgs{}.InsertOpts()
	assert.Equal(t, QueueNotifications, opts.Queue)
	assert.Equal(t, notificationMaxAttempts, opts.MaxAttempts)
	assert.Equal(t, "swap_notification", NotificationArgs{}.Kind())
	// a re-issued code repeats an earlier payload and must still be delivered
	assert.False(t, opts.UniqueOpts.ByArgs)
}

func TestWebhookDispatcher(t *testing.T) {
	var got domain.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.Kind == domain.NotifySwapDisputed {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL)

	err := d.Dispatch(context.Background(), domain.InApp(domain.NotifyOfferReceived, "owner-1", "swap-9", map[string]any{"productID": "p-1"}))
	require.NoError(t, err)
	assert.Equal(t, domain.NotifyOfferReceived, got.Kind)
	assert.Equal(t, "owner-1", got.UserID)
	assert.Equal(t, "p-1", got.Payload["productID"])

	err = d.Dispatch(context.Background(), domain.InApp(domain.NotifySwapDisputed, "owner-1", "swap-9", nil))
	assert.ErrorContains(t, err, "status 502")
}

func TestLogDispatcher_RedactsCode(t *testing.T) {
	payload := map[string]any{"side": "A", "code": "123456"}
	redacted := redact(payload)

	assert.Equal(t, "******", redacted["code"])
	assert.Equal(t, "A", redacted["side"])
	assert.Equal(t, "123456", payload["code"], "input must not be modified")

	assert.NoError(t, LogDispatcher{}.Dispatch(context.Background(), domain.Notification{Kind: domain.NotifyVerificationCode, Payload: payload}))
}

func TestRiverNotifier_Enqueue(t *testing.T) {
	notes := []domain.Notification{
		domain.InApp(domain.NotifyPriceAgreed, "user-a", "swap-1", nil),
		domain.InApp(domain.NotifyPriceAgreed, "user-b", "swap-1", nil),
	}

	t.Run("one insert for all notifications", func(t *testing.T) {
		ins := new(mockInserter)
		ins.On("InsertMany", mock.Anything, mock.MatchedBy(func(p []river.InsertManyParams) bool {
			if len(p) != 2 {
				return false
			}
			first, ok := p[0].Args.(NotificationArgs)
			return ok && first.Notification.UserID == "user-a"
		})).Return([]*rivertype.JobInsertResult{{}, {}}, nil).Once()

		require.NoError(t, NewRiverNotifier(ins, nil).Enqueue(context.Background(), notes...))
		ins.AssertExpectations(t)
	})

	t.Run("nothing to send", func(t *testing.T) {
		ins := new(mockInserter)
		require.NoError(t, NewRiverNotifier(ins, nil).Enqueue(context.Background()))
		ins.AssertNotCalled(t, "InsertMany", mock.Anything, mock.Anything)
	})

	t.Run("insert failure is reported", func(t *testing.T) {
		ins := new(mockInserter)
		ins.On("InsertMany", mock.Anything, mock.Anything).Return(nil, errors.New("pool closed")).Once()

		err := NewRiverNotifier(ins, metrics.New()).Enqueue(context.Background(), notes...)
		assert.ErrorContains(t, err, "pool closed")
	})
}
