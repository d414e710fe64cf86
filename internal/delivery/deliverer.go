package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/storage"
)

// TransportError is returned when the collector produced no response
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("no response from %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Deliverer posts persisted documents to the collector
type Deliverer struct {
	store  storage.FlatStore
	url    string
	client *http.Client
}

// NewDeliverer creates a deliverer posting to url with the given timeout
func NewDeliverer(store storage.FlatStore, url string, timeout time.Duration) *Deliverer {
	return &Deliverer{
		store:  store,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver sends the slot content verbatim in one POST. Any HTTP response,
// success or not, returns its status code; the slot is never modified.
func (d *Deliverer) Deliver(ctx context.Context, slot string) (int, error) {
	data, err := d.store.Read(slot)
	if err != nil {
		return 0, &storage.IOError{Op: "read", Slot: slot, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", d.url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &TransportError{URL: d.url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		log.Warnf("Delivery: failed to read response body: %v", err)
	}

	entry := log.WithFields(log.Fields{"slot": slot, "status": resp.StatusCode, "bytes": len(data)})
	if resp.StatusCode >= 300 {
		entry.Warnf("Delivery: collector rejected document: %s", bytes.TrimSpace(body))
	} else {
		entry.Infof("Delivery: collector replied %s", bytes.TrimSpace(body))
	}
	return resp.StatusCode, nil
}
