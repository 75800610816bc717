package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

const (
	// BreakoutEvent names the webhook and bus event.
	BreakoutEvent = "account_breakout"

	SignatureHeader = "X-Connections-Signature"
	EventHeader     = "X-Connections-Event"
)

// DeliveryRecorder abstracts prometheus metrics for webhook delivery.
type DeliveryRecorder interface {
	RecordWebhookDelivery(outcome string)
}

// WebhookWorkerConfig holds configuration for the webhook dispatcher.
type WebhookWorkerConfig struct {
	// BufferSize is the size of the alert channel buffer.
	BufferSize int

	// WorkerCount is the number of concurrent workers dispatching webhooks.
	WorkerCount int

	// RequestTimeout is the max time to wait for each outgoing HTTP request.
	RequestTimeout time.Duration
}

// DefaultWebhookWorkerConfig returns sensible defaults.
func DefaultWebhookWorkerConfig() WebhookWorkerConfig {
	return WebhookWorkerConfig{
		BufferSize:     1000,
		WorkerCount:    2,
		RequestTimeout: 5 * time.Second,
	}
}

// WebhookWorker dispatches breakout alerts to subscribed endpoints.
// implements domain.NotificationService.
type WebhookWorker struct {
	alertChan  chan domain.BreakoutAlert
	subRepo    domain.WebhookSubscriptionRepository
	httpClient *http.Client
	config     WebhookWorkerConfig
	logger     *logging.Logger
	metrics    DeliveryRecorder

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWebhookWorker creates a new webhook worker.
func NewWebhookWorker(
	subRepo domain.WebhookSubscriptionRepository,
	config WebhookWorkerConfig,
	logger *logging.Logger,
) *WebhookWorker {
	return &WebhookWorker{
		alertChan: make(chan domain.BreakoutAlert, config.BufferSize),
		subRepo:   subRepo,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		config:  config,
		logger:  logger.WithComponent("webhook_worker"),
		stopped: make(chan struct{}),
	}
}

// WithMetrics sets the delivery recorder.
func (w *WebhookWorker) WithMetrics(m DeliveryRecorder) *WebhookWorker {
	w.metrics = m
	return w
}

// WithHTTPClient replaces the outgoing client.
func (w *WebhookWorker) WithHTTPClient(c *http.Client) *WebhookWorker {
	w.httpClient = c
	return w
}

// Start begins the worker goroutines.
func (w *WebhookWorker) Start(ctx context.Context) {
	w.logger.Info("webhook worker starting",
		"buffer_size", w.config.BufferSize,
		"worker_count", w.config.WorkerCount,
		"request_timeout", w.config.RequestTimeout.String(),
	)

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

// Stop gracefully shuts down the worker.
func (w *WebhookWorker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("webhook worker stopping, draining buffer...")
		close(w.alertChan)
		w.wg.Wait()
		close(w.stopped)
		w.logger.Info("webhook worker stopped")
	})
}

// Stopped returns a channel that closes when the worker has fully stopped.
func (w *WebhookWorker) Stopped() <-chan struct{} {
	return w.stopped
}

// NotifyBreakout queues an alert for delivery.
// returns 1 when queued, 0 when the buffer was full and the alert dropped.
func (w *WebhookWorker) NotifyBreakout(ctx context.Context, alert domain.BreakoutAlert) (int, error) {
	select {
	case w.alertChan <- alert:
		w.logger.Debug("breakout queued for notification",
			"account_id", alert.AccountID.String(),
			"early_signal", alert.EarlySignalScore.Int(),
		)
		return 1, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
		w.logger.Warn("webhook buffer full, breakout dropped",
			"account_id", alert.AccountID.String(),
		)
		if w.metrics != nil {
			w.metrics.RecordWebhookDelivery("dropped")
		}
		return 0, nil
	}
}

func (w *WebhookWorker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case alert, ok := <-w.alertChan:
			if !ok {
				w.logger.Debug("worker exiting after drain", "worker_id", workerID)
				return
			}
			w.dispatch(ctx, alert, workerID)

		case <-ctx.Done():
			w.logger.Debug("worker exiting on context cancel", "worker_id", workerID)
			return
		}
	}
}

// dispatch sends an alert to every matching subscription.
// returns the number of successful deliveries.
func (w *WebhookWorker) dispatch(ctx context.Context, alert domain.BreakoutAlert, workerID int) int {
	subs, err := w.subRepo.FindForAccount(ctx, alert.AccountID)
	if err != nil {
		w.logger.Error("failed to fetch subscriptions",
			"worker_id", workerID,
			"account_id", alert.AccountID.String(),
			"error", err.Error(),
		)
		return 0
	}

	if len(subs) == 0 {
		w.logger.Debug("no subscriptions for account",
			"account_id", alert.AccountID.String(),
		)
		return 0
	}

	payloadBytes, err := json.Marshal(NewBreakoutPayload(alert))
	if err != nil {
		w.logger.Error("failed to marshal payload",
			"worker_id", workerID,
			"error", err.Error(),
		)
		return 0
	}

	var sent, failed int
	for _, sub := range subs {
		if w.send(ctx, sub, payloadBytes, workerID) {
			sent++
		} else {
			failed++
		}
	}

	w.logger.Info("breakout notifications dispatched",
		"worker_id", workerID,
		"account_id", alert.AccountID.String(),
		"sent", sent,
		"failed", failed,
	)
	return sent
}

func (w *WebhookWorker) send(ctx context.Context, sub *domain.WebhookSubscription, payload []byte, workerID int) bool {
	outcome := "failed"
	defer func() {
		if w.metrics != nil {
			w.metrics.RecordWebhookDelivery(outcome)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.TargetURL(), bytes.NewReader(payload))
	if err != nil {
		w.logger.Error("failed to create request",
			"worker_id", workerID,
			"target_url", sub.TargetURL(),
			"error", err.Error(),
		)
		return false
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(payload, sub.Secret()))
	req.Header.Set(EventHeader, BreakoutEvent)
	req.Header.Set("User-Agent", "Connections-Webhook/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Warn("webhook request failed",
			"worker_id", workerID,
			"target_url", sub.TargetURL(),
			"error", err.Error(),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		outcome = "delivered"
		w.logger.Debug("webhook delivered",
			"target_url", sub.TargetURL(),
			"status", resp.StatusCode,
		)
		return true
	}

	w.logger.Warn("webhook returned non-success status",
		"worker_id", workerID,
		"target_url", sub.TargetURL(),
		"status", resp.StatusCode,
	)
	return false
}

// Sign computes the HMAC-SHA256 signature receivers verify.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

// BreakoutPayload is the JSON body sent to webhook endpoints and the event bus.
type BreakoutPayload struct {
	Event            string   `json:"event"`
	AccountID        string   `json:"account_id"`
	Handle           string   `json:"handle"`
	PreviousBadge    string   `json:"previous_badge"`
	Badge            string   `json:"badge"`
	EarlySignalScore int      `json:"early_signal_score"`
	AdjustedScore    int      `json:"adjusted_score"`
	Confidence       *float64 `json:"confidence"`
	Reasons          []string `json:"reasons"`
	Timestamp        string   `json:"timestamp"`
}

// NewBreakoutPayload converts an alert into its wire form.
func NewBreakoutPayload(alert domain.BreakoutAlert) BreakoutPayload {
	reasons := alert.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return BreakoutPayload{
		Event:            BreakoutEvent,
		AccountID:        alert.AccountID.String(),
		Handle:           alert.Handle,
		PreviousBadge:    alert.PreviousBadge.String(),
		Badge:            alert.Badge.String(),
		EarlySignalScore: alert.EarlySignalScore.Int(),
		AdjustedScore:    alert.AdjustedScore.Int(),
		Confidence:       alert.Confidence,
		Reasons:          reasons,
		Timestamp:        alert.Timestamp.UTC().Format(time.RFC3339),
	}
}
