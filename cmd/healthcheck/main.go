// Command healthcheck probes the bridge's liveness route and exits non-zero
// when it does not answer 200. It is meant for container HEALTHCHECK lines.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	os.Exit(probe(context.Background(), healthURL(os.Getenv("PORT"))))
}

func healthURL(port string) string {
	if port == "" {
		port = "3001"
	}
	return "http://localhost:" + port + "/health"
}

func probe(ctx context.Context, url string) int {
	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}
	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
