package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
	"github.com/SscSPs/takas_swap_engine/internal/metrics"
)

const (
	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"

	notificationMaxAttempts = 10
)

// NotificationArgs is the job payload of one outbound message.
type NotificationArgs struct {
	Notification domain.Notification `json:"notification"`
}

func (NotificationArgs) Kind() string { return "swap_notification" }

func (NotificationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueNotifications, MaxAttempts: notificationMaxAttempts}
}

// Dispatcher hands a notification to the delivery channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, note domain.Notification) error
}

// LogDispatcher writes notifications to the log. Secrets are redacted.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) Dispatch(ctx context.Context, note domain.Notification) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	channels := make([]string, 0, len(note.Channels))
	for _, c := range note.Channels {
		channels = append(channels, string(c))
	}
	logger.InfoContext(ctx, "Notification dispatched",
		slog.String("kind", string(note.Kind)),
		slog.String("user_id", note.UserID),
		slog.String("swap_id", note.SwapID),
		slog.Any("channels", channels),
		slog.Any("payload", redact(note.Payload)))
	return nil
}

func redact(payload map[string]any) map[string]any {
	if _, ok := payload["code"]; !ok {
		return payload
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	out["code"] = "******"
	return out
}

// WebhookDispatcher posts notifications as JSON to a delivery gateway.
type WebhookDispatcher struct {
	URL    string
	Client *http.Client
}

// NewWebhookDispatcher creates a dispatcher with a bounded HTTP client.
func NewWebhookDispatcher(url string) *WebhookDispatcher {
	return &WebhookDispatcher{URL: url, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, note domain.Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling notification webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NotificationWorker delivers queued notifications. Failed deliveries are retried by river.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationArgs]
	dispatcher Dispatcher
	metrics    *metrics.Collectors
}

func NewNotificationWorker(dispatcher Dispatcher, collectors *metrics.Collectors) *NotificationWorker {
	return &NotificationWorker{dispatcher: dispatcher, metrics: collectors}
}

func (w *NotificationWorker) Timeout(*river.Job[NotificationArgs]) time.Duration {
	return 30 * time.Second
}

func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationArgs]) error {
	note := job.Args.Notification
	if err := w.dispatcher.Dispatch(ctx, note); err != nil {
		w.metrics.Notification(string(note.Kind), "failed")
		slog.WarnContext(ctx, "Notification delivery failed",
			slog.String("kind", string(note.Kind)),
			slog.String("swap_id", note.SwapID),
			slog.Int("attempt", attemptOf(job)),
			slog.String("error", err.Error()))
		return err
	}
	w.metrics.Notification(string(note.Kind), "sent")
	return nil
}

func attemptOf[T river.JobArgs](job *river.Job[T]) int {
	if job.JobRow == nil {
		return 0
	}
	return job.Attempt
}

// inserter is the slice of the river client the notifier needs.
type inserter interface {
	InsertMany(ctx context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error)
}

// RiverNotifier enqueues notifications as river jobs.
type RiverNotifier struct {
	client  inserter
	metrics *metrics.Collectors
}

var _ portssvc.Notifier = (*RiverNotifier)(nil)

func NewRiverNotifier(client inserter, collectors *metrics.Collectors) *RiverNotifier {
	return &RiverNotifier{client: client, metrics: collectors}
}

// Enqueue inserts one job per notification in a single round trip.
func (n *RiverNotifier) Enqueue(ctx context.Context, notes ...domain.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	params := make([]river.InsertManyParams, 0, len(notes))
	for _, note := range notes {
		params = append(params, river.InsertManyParams{Args: NotificationArgs{Notification: note}})
	}
	if _, err := n.client.InsertMany(ctx, params); err != nil {
		for _, note := range notes {
			n.metrics.Notification(string(note.Kind), "enqueue_failed")
		}
		return fmt.Errorf("failed to enqueue %d notifications: %w", len(notes), err)
	}
	for _, note := range notes {
		n.metrics.Notification(string(note.Kind), "enqueued")
	}
	return nil
}
