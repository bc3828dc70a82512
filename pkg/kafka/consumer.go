package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	applogger "Naly/pkg/logger"
)

const commitTimeout = 5 * time.Second

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	WorkerCount int
	BufferSize  int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerWorkers sets the number of workers. Messages of one partition
// always go to the same worker, so per-partition order is kept.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithConsumerRetry sets how often a failed message is retried and the
// exponential backoff range between attempts.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sets the dead-letter topic. Empty disables dead-lettering.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

// WithConsumerBufferSize sets the queue length of each worker.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Consumer reads registered topics in a consumer group and hands messages
// to a pool of workers. Offsets are committed after a message was handled
// or dead-lettered.
type Consumer struct {
	cfg      *ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	queues   []chan message
	dlq      *kafka.Writer
	hook     ConsumerHook
	log      *applogger.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	readWG   sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once
}

type message struct {
	topic string
	km    kafka.Message
}

// NewConsumer creates a consumer. Nothing connects until Start.
func NewConsumer(log *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		hook:     NoopHook{},
		log:      log.With("kafka-consumer"),
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.Hash{}}
	}

	initConsumerMetricsOnce()
	return c, nil
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a message handler for its topic. The first
// handler registered for a topic wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens a reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	c.queues = make([]chan message, c.cfg.WorkerCount)
	for i := range c.queues {
		c.queues[i] = make(chan message, c.cfg.BufferSize)
		c.workWG.Add(1)
		go c.work(c.queues[i])
	}

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = r
		c.readWG.Add(1)
		go c.read(topic, r)
	}

	c.log.Info("consumer started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop stops reading, lets the workers drain their queues and closes the
// readers. It returns ctx's error when draining takes too long.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.cancel()
		c.readWG.Wait()
		for _, q := range c.queues {
			close(q)
		}

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("waiting for kafka workers: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer", applogger.Error(err))
			}
		}
		c.log.Info("consumer stopped")
	})
	return stopErr
}

func (c *Consumer) read(topic string, r *kafka.Reader) {
	defer c.readWG.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("fetch message", applogger.String("topic", topic), applogger.Error(err))
			continue
		}

		q := c.queues[km.Partition%len(c.queues)]
		select {
		case q <- message{topic: topic, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(q)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(q <-chan message) {
	defer c.workWG.Done()
	for m := range q {
		start := time.Now()
		err := c.process(m)

		var outcome string
		switch {
		case err == nil:
			outcome = "handled"
			c.commit(m)
		case c.ctx.Err() != nil:
			// Stopped mid-retry: leave uncommitted for redelivery.
			outcome = "aborted"
		case c.deadLetter(m, err):
			outcome = "dead_lettered"
			c.commit(m)
		default:
			outcome = "failed"
		}
		consumerMessages.WithLabelValues(m.topic, outcome).Inc()
		consumerHandleLatency.WithLabelValues(m.topic).Observe(time.Since(start).Seconds())
	}
}

// process runs the handler with hooks, retrying failures with exponential
// backoff until RetryMax retries are spent or the consumer stops. Handlers
// get a context that Stop does not cancel so queued messages can drain.
func (c *Consumer) process(m message) (err error) {
	handler, ok := c.handlers[m.topic]
	if !ok {
		return fmt.Errorf("no handler for topic %s", m.topic)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.BackoffMin
	eb.MaxInterval = c.cfg.BackoffMax
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(c.cfg.RetryMax, 0))), c.ctx)

	attempts := 0
	op := func() error {
		attempts++
		hctx, hmsg, data, err := c.hook.BeforeHandle(context.Background(), m.topic, m.km, m.km.Value)
		if err != nil {
			return backoff.Permanent(err)
		}
		err = handler.Handle(hctx, data)
		c.hook.AfterHandle(hctx, m.topic, hmsg, data, err)
		if err != nil {
			c.hook.OnError(hctx, m.topic, hmsg, data, err)
		}
		return err
	}

	err = backoff.Retry(op, policy)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		c.log.Error("message handling failed",
			applogger.String("topic", m.topic),
			applogger.Int("partition", m.km.Partition),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
	}
	return err
}

// deadLetter copies m to the DLQ topic and reports whether that succeeded.
func (c *Consumer) deadLetter(m message, cause error) bool {
	if c.dlq == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   m.km.Key,
		Value: m.km.Value,
		Time:  time.Now(),
		Headers: append(m.km.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(m.topic)},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
		),
	})
	if err != nil {
		c.log.Error("dlq write", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(m message) {
	r := c.readers[m.topic]
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	commit := func() error { return r.CommitMessages(ctx, m.km) }
	if err := backoff.Retry(commit, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)); err != nil {
		c.log.Error("commit failed",
			applogger.String("topic", m.topic),
			applogger.Int("partition", m.km.Partition),
			applogger.Error(err),
		)
	}
}

var (
	consumerQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "naly_kafka_consumer_queue_depth", Help: "Messages waiting in a worker queue after the last enqueue"},
		[]string{"topic"},
	)
	consumerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "naly_kafka_consumer_messages_total", Help: "Consumed messages by outcome"},
		[]string{"topic", "outcome"},
	)
	consumerHandleLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "naly_kafka_consumer_handle_seconds", Help: "Handling time per message including retries"},
		[]string{"topic"},
	)
	consumerOnce sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		prometheus.MustRegister(consumerQueueDepth, consumerMessages, consumerHandleLatency)
	})
}
