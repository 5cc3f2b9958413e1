// Floods the scan endpoint with duplicate presentations of the same
// labels and reports how many decrements actually landed. Run against
// a dev server seeded with stock to verify exactly-once consumption
// under concurrency.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:8080", "server base URL")
		location     = flag.String("location", "fortaleza", "owning location")
		tokenPrefix  = flag.String("prefix", "CF", "label category prefix")
		reference    = flag.String("ref", "picanha", "item reference on the labels")
		labels       = flag.Int("labels", 20, "distinct labels to mint")
		perLabel     = flag.Int("per-label", 5, "duplicate presentations per label")
		concurrency  = flag.Int("concurrency", 50, "parallel requests")
	)
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	type scanResponse struct {
		Success bool   `json:"success"`
		Kind    string `json:"error_kind"`
	}

	var success, alreadyUsed, other atomic.Int32

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup
	start := time.Now()

	for l := 0; l < *labels; l++ {
		token := fmt.Sprintf("%s-%s-%04d", *tokenPrefix, *reference, l)
		for p := 0; p < *perLabel; p++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(token string) {
				defer wg.Done()
				defer func() { <-sem }()

				body, _ := json.Marshal(map[string]string{"token": token, "location": *location})
				resp, err := client.Post(*baseURL+"/api/scan", "application/json", bytes.NewReader(body))
				if err != nil {
					log.Printf("request failed: %v", err)
					other.Add(1)
					return
				}
				defer resp.Body.Close()

				var sr scanResponse
				json.NewDecoder(resp.Body).Decode(&sr)
				switch {
				case sr.Success:
					success.Add(1)
				case sr.Kind == "already_used":
					alreadyUsed.Add(1)
				default:
					other.Add(1)
				}
			}(token)
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	total := *labels * *perLabel
	fmt.Printf("requests:      %d in %v\n", total, elapsed)
	fmt.Printf("decremented:   %d (want %d, one per label)\n", success.Load(), *labels)
	fmt.Printf("already used:  %d\n", alreadyUsed.Load())
	fmt.Printf("other:         %d\n", other.Load())

	if int(success.Load()) > *labels {
		log.Fatal("FAIL: more decrements than labels, idempotency broken")
	}
}
