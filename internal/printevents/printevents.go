// Package printevents publishes one Kafka event per finished print job.
package printevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

type Event struct {
	JobID     string    `json:"job_id"`
	MapID     string    `json:"map_id"`
	Zoom      int       `json:"zoom"`
	CenterX   float64   `json:"center_x"`
	CenterY   float64   `json:"center_y"`
	WidthMM   float64   `json:"width_mm"`
	HeightMM  float64   `json:"height_mm"`
	DPI       float64   `json:"dpi"`
	Format    string    `json:"format"`
	Tiles     int       `json:"tiles"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Bytes     int64     `json:"bytes"`
	ElapsedMS int64     `json:"elapsed_ms"`
	TS        time.Time `json:"ts"`
}

// Sink receives print events. Publish must not block.
type Sink interface {
	Publish(ev Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}

type Publisher struct {
	topic   string
	logger  *slog.Logger
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errDone chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "geos"
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("printevents: create async producer: %w", err)
	}
	return NewPublisherWithProducer(prod, topic, queueSize, logger), nil
}

// NewPublisherWithProducer takes ownership of prod.
func NewPublisherWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Publisher{
		topic:   topic,
		logger:  logger,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Warn("printevents: marshal error", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.MapID),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("printevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev. When the queue is full the event is dropped.
func (p *Publisher) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		p.logger.Debug("printevents: queue full, dropping event", "job_id", ev.JobID)
	}
}

// Close flushes queued events and closes the producer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped
	err := p.prod.Close()
	<-p.errDone
	if err != nil {
		return fmt.Errorf("printevents: close producer: %w", err)
	}
	return nil
}
