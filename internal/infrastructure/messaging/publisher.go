package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
	"github.com/joacominatel/connections/internal/infrastructure/worker"
)

// SubjectBreakout is the NATS subject breakout alerts are published on.
const SubjectBreakout = "connections.account.breakout"

var ErrNATSNotConnected = errors.New("nats not connected")

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Status() nats.Status
	Close()
}

// Publisher emits breakout alerts on the event bus.
// implements application.BreakoutPublisher.
type Publisher struct {
	conn   conn
	logger *logging.Logger
}

// Connect dials NATS and returns a publisher.
// returns nil if the URL is empty (event bus disabled).
func Connect(url, token string, logger *logging.Logger) (*Publisher, error) {
	log := logger.WithComponent("nats")
	if url == "" {
		log.Info("event bus disabled: no NATS_URL configured")
		return nil, nil
	}

	opts := []nats.Option{
		nats.Name("connections"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Info("nats connected", "url", url)
	return &Publisher{conn: nc, logger: log}, nil
}

// PublishBreakout publishes an alert as JSON on SubjectBreakout.
func (p *Publisher) PublishBreakout(ctx context.Context, alert domain.BreakoutAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(worker.NewBreakoutPayload(alert))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := p.conn.Publish(SubjectBreakout, payload); err != nil {
		p.logger.Warn("breakout publish failed",
			"account_id", alert.AccountID.String(),
			"error", err.Error(),
		)
		return fmt.Errorf("publish %s: %w", SubjectBreakout, err)
	}

	p.logger.Debug("breakout published",
		"subject", SubjectBreakout,
		"account_id", alert.AccountID.String(),
	)
	return nil
}

// Name identifies the event bus in readiness reports.
func (p *Publisher) Name() string {
	return "nats"
}

// Check implements application.HealthChecker.
func (p *Publisher) Check(context.Context) error {
	if status := p.conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("%w: %s", ErrNATSNotConnected, status.String())
	}
	return nil
}

// Close closes the underlying connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
