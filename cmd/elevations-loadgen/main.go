// Load generator for the elevations endpoint. Builds a pool of request
// payloads around a few hot sites, then drives them with a Zipf
// distribution so cache and dedup behavior show up under load.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mohammed-shakir/h3-elevations/internal/core/model"
	h3mapper "github.com/mohammed-shakir/h3-elevations/internal/mapper/h3"
)

type Config struct {
	TargetURL       string
	Concurrency     int
	Duration        time.Duration
	ZipfS           float64
	ZipfV           float64
	PayloadCount    int
	CoordsPerReq    int
	CellShare       float64
	Resolution      int
	OutputPrefix    string
	RequestTimeout  time.Duration
	AppendTimestamp bool
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:8080/elevations", "Elevations endpoint URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 32, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.PayloadCount, "payloads", 128, "Distinct payloads in pool")
	flag.IntVar(&cfg.CoordsPerReq, "coords", 10, "Coordinates per coordinate-shaped request")
	flag.Float64Var(&cfg.CellShare, "cell-share", 0.3, "Fraction of payloads addressed by cell id")
	flag.IntVar(&cfg.Resolution, "res", 10, "Resolution for generated requests")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/elevations", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.BoolVar(&cfg.AppendTimestamp, "append-ts", true, "Append timestamp to output prefix")
	flag.Parse()
	return cfg
}

// offshore sites the hot payloads cluster around
var sites = [][2]float64{
	{54.5, 5.9},
	{55.0, 7.5},
	{53.5, 4.5},
	{56.2, 3.2},
}

type payload struct {
	Body  []byte
	Shape string
}

// makePayloads builds a mixed pool: mostly coordinate batches jittered
// around the sites, plus a share of cell-id requests derived from the
// same area so both request paths get exercised.
func makePayloads(cfg Config, r *rand.Rand) ([]payload, error) {
	codec := h3mapper.New()
	payloads := make([]payload, 0, cfg.PayloadCount)

	cellCount := int(float64(cfg.PayloadCount) * cfg.CellShare)
	for len(payloads) < cfg.PayloadCount {
		site := sites[len(payloads)%len(sites)]
		coords := make([][2]float64, 0, cfg.CoordsPerReq)
		for i := 0; i < cfg.CoordsPerReq; i++ {
			lat := site[0] + (r.Float64()-0.5)*0.2
			lng := site[1] + (r.Float64()-0.5)*0.2
			coords = append(coords, [2]float64{lat, lng})
		}

		if len(payloads) < cellCount {
			cells := make([]uint64, 0, len(coords))
			for _, c := range coords {
				cell, err := codec.CellFromCoordinate(model.Coordinate{Lat: c[0], Lng: c[1]}, cfg.Resolution)
				if err != nil {
					return nil, fmt.Errorf("derive cell: %w", err)
				}
				cells = append(cells, uint64(cell))
			}
			body, err := json.Marshal(map[string]any{"cells": cells})
			if err != nil {
				return nil, err
			}
			payloads = append(payloads, payload{Body: body, Shape: "cells"})
			continue
		}

		body, err := json.Marshal(map[string]any{"coordinates": coords, "resolution": cfg.Resolution})
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload{Body: body, Shape: "coordinates"})
	}
	return payloads, nil
}

// request result (one sample per request)
type sample struct {
	Timestamp    time.Time
	Latency      time.Duration
	Status       int
	ErrorMsg     string
	PayloadIndex int
	Shape        string
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Payloads      int       `json:"payloads"`
	Resolution    int       `json:"resolution"`
	TargetURL     string    `json:"target"`
}

type aggregatedResult struct {
	total   int64
	success int64
	errors  int64
	latMs   []float64
}

func main() {
	cfg := loadConfig()
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}

	prefix := cfg.OutputPrefix
	if cfg.AppendTimestamp {
		prefix = fmt.Sprintf("%s_%s", prefix, time.Now().UTC().Format("20060102_150405Z"))
	}

	seed := time.Now().UnixNano()
	r := rand.New(rand.NewSource(seed))

	payloads, err := makePayloads(cfg, r)
	if err != nil {
		log.Fatalf("build payloads: %v", err)
	}
	log.Printf("using %d payloads (%d cell-shaped)", len(payloads), int(float64(cfg.PayloadCount)*cfg.CellShare))

	imax := uint64(len(payloads)) - 1

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          1024,
			MaxIdleConnsPerHost:   256,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   4 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Printf("open csv: %v", err)
		return
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	// collects results asynchronously
	samplesChan := make(chan sample, 4096)
	resultsChan := make(chan aggregatedResult, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "error", "payload_idx", "shape"})
		var total, successCount, errorCount int64
		latencies := make([]float64, 0, 1<<20)
		for s := range samplesChan {
			total++
			if s.ErrorMsg == "" && s.Status >= 200 && s.Status < 300 {
				successCount++
				latencies = append(latencies, float64(s.Latency.Microseconds())/1000.0)
			} else {
				errorCount++
			}
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				fmt.Sprintf("%.3f", float64(s.Latency.Microseconds())/1000.0),
				fmt.Sprintf("%d", s.Status),
				s.ErrorMsg,
				fmt.Sprintf("%d", s.PayloadIndex),
				s.Shape,
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
		resultsChan <- aggregatedResult{total: total, success: successCount, errors: errorCount, latMs: latencies}
	}()

	startTime := time.Now()
	log.Printf("loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) payloads=%d res=%d",
		cfg.TargetURL, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, cfg.PayloadCount, cfg.Resolution)

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)

	for workerID := 0; workerID < cfg.Concurrency; workerID++ {
		go func(id int) {
			defer wg.Done()

			rWorker := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipfDist := rand.NewZipf(rWorker, cfg.ZipfS, cfg.ZipfV, imax)
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				v := zipfDist.Uint64()
				if v >= uint64(len(payloads)) {
					continue
				}
				p := payloads[int(v)]

				startReq := time.Now()
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TargetURL, bytes.NewReader(p.Body))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Accept", "application/json")
				resp, err := httpClient.Do(req)
				latency := time.Since(startReq)

				result := sample{
					Timestamp:    startReq,
					Latency:      latency,
					PayloadIndex: int(v),
					Shape:        p.Shape,
				}

				if err != nil {
					result.ErrorMsg = err.Error()
				} else {
					result.Status = resp.StatusCode
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
					if resp.StatusCode < 200 || resp.StatusCode >= 300 {
						result.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
					}
				}

				select {
				case samplesChan <- result:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samplesChan)
	}()

	aggResult := <-resultsChan
	endTime := time.Now()
	elapsed := endTime.Sub(startTime).Seconds()

	sort.Float64s(aggResult.latMs)
	p50 := percentile(aggResult.latMs, 50)
	p95 := percentile(aggResult.latMs, 95)
	p99 := percentile(aggResult.latMs, 99)

	runSummary := summary{
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		DurationSec:   elapsed,
		TotalRequests: aggResult.total,
		SuccessCount:  aggResult.success,
		ErrorCount:    aggResult.errors,
		ThroughputRPS: float64(aggResult.total) / elapsed,
		P50Ms:         p50,
		P95Ms:         p95,
		P99Ms:         p99,
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Payloads:      cfg.PayloadCount,
		Resolution:    cfg.Resolution,
		TargetURL:     cfg.TargetURL,
	}

	jsonFile, err := os.Create(filepath.Clean(jsonPath))
	if err == nil {
		enc := json.NewEncoder(jsonFile)
		enc.SetIndent("", "  ")
		_ = enc.Encode(runSummary)
		_ = jsonFile.Close()
	}

	log.Printf("done: total=%d succ=%d err=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		aggResult.total, aggResult.success, aggResult.errors, runSummary.ThroughputRPS, p50, p95, p99)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
