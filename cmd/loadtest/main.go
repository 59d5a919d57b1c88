// Command loadtest drives a running codec service with encode/decode round
// trips of random payloads and reports latency and correctness.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/api"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	MinBytes    int
	MaxBytes    int
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the codec service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	minBytes := flag.Int("min-bytes", 0, "smallest payload to send")
	maxBytes := flag.Int("max-bytes", 256, "largest payload to send")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		MinBytes:    *minBytes,
		MaxBytes:    max(*maxBytes, *minBytes),
	}

	fmt.Println("=== Exquisite Corpse Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Payloads:    %d..%d bytes\n", cfg.MinBytes, cfg.MaxBytes)
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(workerID), uint64(time.Now().UnixNano())))
			for ctx.Err() == nil {
				payload := make([]byte, cfg.MinBytes+rng.IntN(cfg.MaxBytes-cfg.MinBytes+1))
				for i := range payload {
					payload[i] = byte(rng.UintN(256))
				}
				start := time.Now()
				status, err := roundTrip(ctx, client, cfg.BaseURL, payload)
				if ctx.Err() != nil {
					return
				}
				stats.RecordRoundTrip(time.Since(start), status, len(payload), err)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// roundTrip encodes payload, decodes the sentences and compares. It returns
// the last HTTP status seen.
func roundTrip(ctx context.Context, client *http.Client, baseURL string, payload []byte) (int, error) {
	var enc api.EncodeResponse
	status, err := postJSON(ctx, client, baseURL+"/api/v1/encode", api.EncodeRequest{Payload: payload}, &enc)
	if err != nil {
		return status, err
	}
	var dec api.DecodeResponse
	status, err = postJSON(ctx, client, baseURL+"/api/v1/decode", api.DecodeRequest{Sentences: enc.Sentences}, &dec)
	if err != nil {
		return status, err
	}
	if !bytes.Equal(dec.Payload, payload) {
		return status, errMismatch
	}
	return status, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}
