// Package main is a smoke-test utility for a running API. It calls the
// health probe and the public property listing and prints each status and
// body, so a post-deployment check needs nothing beyond this binary.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("PD_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 10 * time.Second}
	failed := false
	for _, path := range []string{"/health", "/api/v1/properties?limit=5"} {
		resp, err := client.Get(base + path)
		if err != nil {
			fmt.Printf("%s: error: %v\n", path, err)
			failed = true
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("%s: error reading body: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: status %d\n%s\n\n", path, resp.StatusCode, string(body))
		if resp.StatusCode >= 400 {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
