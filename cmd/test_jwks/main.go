package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Small debugging helper: fetches the JWKS document from a running instance
// and pretty-prints it, so operators can confirm which signing keys are live.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the credential service")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	endpoint := fmt.Sprintf("%s/.well-known/jwks.json", *baseURL)
	fmt.Printf("Fetching %s...\n", endpoint)

	resp, err := client.Get(endpoint)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read body: %v", err)
	}

	var pretty json.RawMessage = body
	formatted, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		log.Fatalf("malformed JWKS payload: %v", err)
	}

	fmt.Println("JWKS document:")
	fmt.Println(string(formatted))
}
