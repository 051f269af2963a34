// Package main is a load probe for the notification WebSocket. It opens
// several connections for one citizen and, when official credentials and a
// claim are given, flips that claim's status to generate events.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	StatusChanges        int64
	EventsReceived       int64
	Errors               int64
}

var (
	metrics    Metrics
	httpClient = &http.Client{Timeout: 5 * time.Second}
)

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "citizen@fra-atlas.local", "Citizen email")
	password := flag.String("password", "password123", "Citizen password")
	officialEmail := flag.String("official-email", "", "Official email used to trigger status changes")
	officialPassword := flag.String("official-password", "password123", "Official password")
	claimID := flag.String("claim", "", "Claim owned by the citizen whose status is toggled")
	clients := flag.Int("clients", 10, "Concurrent connections (the server allows 12 per user)")
	interval := flag.Duration("interval", 5*time.Second, "Status change interval")
	duration := flag.Duration("duration", 30*time.Second, "Probe duration")
	flag.Parse()

	log.Printf("Starting notification probe against %s with %d clients for %v", *host, *clients, *duration)

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("Citizen login failed: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, token, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger connections to allow ticket issuance
	}

	if *officialEmail != "" && *claimID != "" {
		officialToken, err := login(*host, *officialEmail, *officialPassword)
		if err != nil {
			log.Fatalf("Official login failed: %v", err)
		}
		wg.Add(1)
		go runReviewer(*host, officialToken, *claimID, *interval, stopChan, &wg)
	}

	select {
	case <-time.After(*duration):
		log.Println("Probe duration reached")
	case <-interrupt:
		log.Println("Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics(*clients)
}

func postJSON(target, token, method string, payload, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, target, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s failed with status %d", method, target, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func login(host, email, password string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	err := postJSON(fmt.Sprintf("http://%s/api/auth/login", host), "", http.MethodPost,
		map[string]string{"email": email, "password": password}, &result)
	return result.Token, err
}

func getTicket(host, token string) (string, error) {
	var result struct {
		Ticket string `json:"ticket"`
	}
	err := postJSON(fmt.Sprintf("http://%s/api/ws/ticket", host), token, http.MethodPost, nil, &result)
	return result.Ticket, err
}

func runReviewer(host, token, claimID string, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	target := fmt.Sprintf("http://%s/api/claims/%s/status", host, claimID)
	statuses := []string{"under_review", "pending"}
	for i := 0; ; i++ {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			payload := map[string]string{"status": statuses[i%len(statuses)], "remarks": "notification probe"}
			if err := postJSON(target, token, http.MethodPatch, payload, nil); err != nil {
				log.Printf("Status change failed: %v", err)
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.StatusChanges, 1)
		}
	}
}

func runClient(host, token string, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	// Get a fresh ticket for this connection
	ticket, err := getTicket(host, token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: "ticket=" + ticket}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			var ev struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(data, &ev) == nil && ev.Type != "" {
				atomic.AddInt64(&metrics.EventsReceived, 1)
			}
		}
	}()

	select {
	case <-stopChan:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-done:
		atomic.AddInt64(&metrics.Errors, 1)
	}
}

func printMetrics(clients int) {
	log.Println("Probe results")
	log.Println("=============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Status Changes: %d", atomic.LoadInt64(&metrics.StatusChanges))
	log.Printf("Events Received: %d (expected %d)", atomic.LoadInt64(&metrics.EventsReceived),
		atomic.LoadInt64(&metrics.StatusChanges)*int64(clients))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
