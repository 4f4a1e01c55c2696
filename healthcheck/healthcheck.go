package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	defaultPort    = "3000"
	requestTimeout = 5 * time.Second
)

type health struct {
	Status    string `json:"status"`
	Synced    bool   `json:"synced"`
	Clients   int    `json:"clients"`
	Transport string `json:"transport"`
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := run(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(0)
}

func run(ctx context.Context) error {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = defaultPort
	}
	// HEALTHCHECK_REQUIRE_SYNC=true also fails while no snapshot was applied yet
	requireSync, _ := strconv.ParseBool(os.Getenv("HEALTHCHECK_REQUIRE_SYNC"))

	url := fmt.Sprintf("http://localhost:%s/health", port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "warning: failed to close response body: %v\n", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	var h health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return fmt.Errorf("could not decode health response: %w", err)
	}
	if h.Status != "ok" {
		return fmt.Errorf("server reports status %q", h.Status)
	}
	if requireSync && !h.Synced {
		return fmt.Errorf("server has not synced with the player yet (transport %s)", h.Transport)
	}

	return nil
}
