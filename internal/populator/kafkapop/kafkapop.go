// Package kafkapop publishes population requests to Kafka.
package kafkapop

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	"github.com/mohammed-shakir/h3-elevations/internal/populator"
	"github.com/mohammed-shakir/h3-elevations/pkg/populate"
)

type Publisher struct {
	topic   string
	queue   chan populate.Request
	prod    sarama.AsyncProducer
	log     *slog.Logger
	stopped chan struct{}
}

func New(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkapop: create async producer: %w", err)
	}
	return newWithProducer(prod, topic, queueSize, log), nil
}

func newWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if topic == "" {
		topic = populate.DefaultTopic
	}

	p := &Publisher{
		topic:   topic,
		queue:   make(chan populate.Request, queueSize),
		prod:    prod,
		log:     log,
		stopped: make(chan struct{}),
	}

	go p.forward()
	go p.drainErrors()
	return p
}

// RequestPopulation enqueues one message for the batch. A full queue drops
// the message; the cells stay marked pending and a later request past the
// TTL window triggers them again.
func (p *Publisher) RequestPopulation(cells []model.Cell) {
	req := populator.NewRequest(cells)
	select {
	case p.queue <- req:
	default:
		p.log.Warn("populate queue full, dropping request", "cells", len(cells))
	}
}

func (p *Publisher) forward() {
	defer close(p.stopped)
	for req := range p.queue {
		b, err := json.Marshal(req)
		if err != nil {
			p.log.Error("kafkapop: marshal request", "err", err)
			continue
		}
		p.prod.Input() <- &sarama.ProducerMessage{
			Topic: p.topic,
			Value: sarama.ByteEncoder(b),
		}
	}
}

func (p *Publisher) drainErrors() {
	for err := range p.prod.Errors() {
		if err != nil {
			p.log.Error("kafkapop: producer error", "err", err)
		}
	}
}

func (p *Publisher) Close() error {
	close(p.queue)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("kafkapop: close producer: %w", err)
	}
	return nil
}
