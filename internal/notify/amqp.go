package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type AMQPConfig struct {
	URL        string
	Exchange   string
	RetryCount int
	RetryDelay time.Duration
}

// AMQPReporter publishes report refresh requests to a topic exchange.
type AMQPReporter struct {
	cfg    AMQPConfig
	logger *slog.Logger

	mu           sync.RWMutex
	connection   *amqp.Connection
	channel      *amqp.Channel
	closing      bool
	reconnecting bool
}

var errReconnecting = errors.New("rabbitmq reconnect in progress")

func NewAMQPReporter(cfg AMQPConfig, logger *slog.Logger) *AMQPReporter {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPReporter{cfg: cfg, logger: logger}
}

// Connect dials the broker with retries. The lock is only taken to install the new
// connection, so publishers are never held up by a dial in flight.
func (r *AMQPReporter) Connect() error {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return errReconnecting
	}
	r.reconnecting = true
	r.mu.Unlock()

	conn, channel, err := r.dial()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnecting = false
	if err != nil {
		return err
	}
	if r.closing {
		channel.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq reporter closed")
	}
	r.connection, r.channel = conn, channel

	r.logger.Info("connected to rabbitmq", "exchange", r.cfg.Exchange)
	go r.watch(conn)
	return nil
}

func (r *AMQPReporter) dial() (*amqp.Connection, *amqp.Channel, error) {
	var err error
	for i := 0; i < r.cfg.RetryCount; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(r.cfg.URL)
		if err != nil {
			r.logger.Warn("rabbitmq connection failed", "attempt", i+1, "of", r.cfg.RetryCount, "error", err)
			if i < r.cfg.RetryCount-1 {
				time.Sleep(r.cfg.RetryDelay)
			}
			continue
		}

		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
		}

		if err := channel.ExchangeDeclare(r.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("declare exchange %s: %w", r.cfg.Exchange, err)
		}
		return conn, channel, nil
	}

	return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
}

func (r *AMQPReporter) watch(conn *amqp.Connection) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	err, ok := <-closed
	if !ok {
		return
	}

	r.mu.RLock()
	closing := r.closing
	r.mu.RUnlock()
	if closing {
		return
	}

	r.logger.Warn("rabbitmq connection lost, reconnecting", "error", err)
	time.Sleep(r.cfg.RetryDelay)
	if err := r.Connect(); err != nil {
		r.logger.Error("rabbitmq reconnect failed", "error", err)
	}
}

func (r *AMQPReporter) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.reconnecting && r.connection != nil && !r.connection.IsClosed()
}

func (r *AMQPReporter) RefreshReport(ctx context.Context, refresh ReportRefresh) error {
	r.mu.RLock()
	reconnecting := r.reconnecting
	channel := r.channel
	connected := r.connection != nil && !r.connection.IsClosed()
	r.mu.RUnlock()

	if reconnecting {
		return errReconnecting
	}
	if !connected || channel == nil {
		return fmt.Errorf("no connection to rabbitmq")
	}

	body, err := json.Marshal(refresh)
	if err != nil {
		return fmt.Errorf("encode report refresh: %w", err)
	}

	err = channel.Publish(r.cfg.Exchange, RoutingKeyReportRefresh, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"organization_id": refresh.OrganizationID.String(),
			"payment_id":      refresh.PaymentID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKeyReportRefresh, err)
	}
	return nil
}

func (r *AMQPReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closing {
		return nil
	}
	r.closing = true

	if r.channel != nil {
		r.channel.Close()
	}
	if r.connection != nil {
		return r.connection.Close()
	}
	return nil
}
