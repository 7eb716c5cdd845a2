// Package httppop posts population requests to a webhook, for deployments
// where the population workers sit behind an HTTP trigger instead of a
// message broker.
package httppop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/h3-elevations/internal/core/httpclient"
	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	"github.com/mohammed-shakir/h3-elevations/internal/populator"
	"github.com/mohammed-shakir/h3-elevations/pkg/populate"
)

type Driver struct {
	url     string
	client  *http.Client
	queue   chan populate.Request
	log     *slog.Logger
	stopped chan struct{}
}

func New(url string, queueSize int, timeout time.Duration, log *slog.Logger) (*Driver, error) {
	if url == "" {
		return nil, errors.New("httppop: webhook url is required")
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	d := &Driver{
		url:     url,
		client:  httpclient.NewOutbound(timeout),
		queue:   make(chan populate.Request, queueSize),
		log:     log,
		stopped: make(chan struct{}),
	}
	go d.forward()
	return d, nil
}

// RequestPopulation enqueues one webhook call for the batch. A full queue
// drops the message; the dedup TTL re-arms the trigger later.
func (d *Driver) RequestPopulation(cells []model.Cell) {
	req := populator.NewRequest(cells)
	select {
	case d.queue <- req:
	default:
		d.log.Warn("populate queue full, dropping request", "cells", len(cells))
	}
}

func (d *Driver) forward() {
	defer close(d.stopped)
	for req := range d.queue {
		if err := d.post(req); err != nil {
			d.log.Error("httppop: deliver request", "cells", len(req.Cells), "err", err)
		}
	}
}

func (d *Driver) post(req populate.Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := d.client.Post(d.url, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// Close drains the queue, delivering what is already enqueued.
func (d *Driver) Close() error {
	close(d.queue)
	<-d.stopped
	return nil
}
