// Package popworker consumes population requests from Kafka and fills the
// elevation store, closing the loop the service's populate driver opens.
package popworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	"github.com/mohammed-shakir/h3-elevations/internal/core/observability"
	"github.com/mohammed-shakir/h3-elevations/pkg/populate"
)

// Store is the write side of the elevation store.
type Store interface {
	Put(ctx context.Context, elevations map[model.Cell]float64, ttl time.Duration) error
}

// Source yields the elevation for a cell. Failures are retryable; the
// message is not committed until every cell resolved and was written.
type Source interface {
	Elevation(c model.Cell) (float64, error)
}

type Worker struct {
	cfg    Config
	logger *slog.Logger
	store  Store
	source Source
}

func New(cfg Config, logger *slog.Logger, st Store, src Source) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{cfg: cfg, logger: logger, store: st, source: src}
}

// Start consumes populate requests until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if w.store == nil || w.source == nil {
		return errors.New("popworker: missing dependencies (store/source)")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = w.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = w.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = w.cfg.RebalanceTimeout
	if w.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(w.cfg.Brokers, w.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: w.ProcessOne}

	w.logger.Info("population worker starting",
		"brokers", w.cfg.Brokers, "topic", w.cfg.Topic, "group", w.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("population worker shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{w.cfg.Topic}, handler); err != nil {
				w.logger.Error("consumer error", "topic", w.cfg.Topic, "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single populate request. Undecodable messages are
// dropped so a poison message cannot wedge the partition; store and source
// failures are returned so the message is redelivered.
func (w *Worker) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var req populate.Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		observability.IncWorkerEvent("decode_error")
		w.logger.Error("dropping undecodable populate request",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}

	elevations := make(map[model.Cell]float64, len(req.Cells))
	for _, id := range req.Cells {
		cell := model.Cell(id)
		if !cell.Valid() {
			w.logger.Warn("skipping invalid cell in populate request", "cell", id)
			continue
		}
		meters, err := w.source.Elevation(cell)
		if err != nil {
			observability.IncWorkerEvent("source_error")
			return fmt.Errorf("elevation for %s: %w", cell, err)
		}
		elevations[cell] = meters
	}
	if len(elevations) == 0 {
		observability.IncWorkerEvent("empty")
		return nil
	}

	if err := w.store.Put(ctx, elevations, w.cfg.ValueTTL); err != nil {
		observability.IncWorkerEvent("store_error")
		return fmt.Errorf("store write: %w", err)
	}

	observability.IncWorkerEvent("ok")
	observability.AddCellsPopulated(len(elevations))
	w.logger.Info("populated cells",
		"cells", len(elevations),
		"lag", time.Since(req.RequestedAt).String(),
		"dur", time.Since(start).String())
	return nil
}
