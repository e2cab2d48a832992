// Package wled posts effect states to WLED strip controllers over their JSON
// API.
package wled

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lightrig/internal/logger"
)

const (
	defaultTimeout = 250 * time.Millisecond
	// dedupeWindow suppresses reposting an identical payload to the same URL.
	dedupeWindow = time.Second
)

// Segment is one WLED segment state.
type Segment struct {
	FX  int      `json:"fx"`
	SX  int      `json:"sx"`
	IX  int      `json:"ix"`
	Col [][3]int `json:"col"`
	Pal int      `json:"pal"`
}

// Payload is the body posted to <url>.
type Payload struct {
	On  bool      `json:"on"`
	Bri int       `json:"bri"`
	Seg []Segment `json:"seg"`
}

// Poster sends payloads without waiting for the device.
type Poster interface {
	PostEffect(url string, p Payload)
}

// Client posts through one worker per URL. A worker keeps only the latest
// payload, so a slow or dead device never queues up stale states and never
// delays the caller. Failures are logged and dropped.
type Client struct {
	http    *http.Client
	log     *logger.Log
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	workers map[string]*worker
}

type worker struct {
	url    string
	notify chan struct{}
	mu     sync.Mutex
	next   []byte
}

// NewClient returns a client whose posts time out after timeout.
func NewClient(log logger.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		http:    &http.Client{Timeout: timeout},
		log:     log.Module("wled"),
		ctx:     ctx,
		cancel:  cancel,
		workers: map[string]*worker{},
	}
}

// PostEffect implements Poster.
func (c *Client) PostEffect(url string, p Payload) {
	body, err := json.Marshal(p)
	if err != nil {
		c.log.Errorf("encoding payload for %s: %v", url, err)
		return
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	w, ok := c.workers[url]
	if !ok {
		w = &worker{url: url, notify: make(chan struct{}, 1)}
		c.workers[url] = w
		c.wg.Add(1)
		go c.run(w)
	}
	c.mu.Unlock()

	w.mu.Lock()
	w.next = body
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (c *Client) run(w *worker) {
	defer c.wg.Done()
	var (
		last   []byte
		lastAt time.Time
	)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-w.notify:
		}

		w.mu.Lock()
		body := w.next
		w.next = nil
		w.mu.Unlock()
		if body == nil {
			continue
		}
		if bytes.Equal(body, last) && time.Since(lastAt) < dedupeWindow {
			continue
		}
		if err := c.post(w.url, body); err != nil {
			c.log.Debugf("post to %s dropped: %v", w.url, err)
			continue
		}
		last, lastAt = body, time.Now()
	}
}

func (c *Client) post(url string, body []byte) error {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// Close stops every worker. Pending payloads are dropped.
func (c *Client) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}
