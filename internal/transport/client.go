package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dwnode/dwnd/internal/model"
	wnsync "github.com/dwnode/dwnd/internal/sync"
)

// RemoteDialer dials a peer DWN instance's HTTP endpoint for the sync
// worker pool, the counterpart to Server on the other side of the wire.
type RemoteDialer struct {
	client *http.Client
}

// NewRemoteDialer builds a RemoteDialer whose requests time out after
// timeout.
func NewRemoteDialer(timeout time.Duration) *RemoteDialer {
	return &RemoteDialer{client: &http.Client{Timeout: timeout}}
}

// Dial satisfies sync.RemoteDialer. remoteAddress is the peer's full
// "https://host/dwn/<owner-did>" endpoint for the identity being synced.
func (d *RemoteDialer) Dial(remoteAddress string) (wnsync.RemoteClient, error) {
	return &remoteClient{baseURL: remoteAddress, client: d.client}, nil
}

type remoteClient struct {
	baseURL string
	client  *http.Client
}

func (c *remoteClient) Manifest(ctx context.Context) ([]model.LocalRecordRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/manifest", nil)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to build manifest request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to fetch manifest from %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: manifest request to %s returned status %d", c.baseURL, resp.StatusCode)
	}

	var refs []model.LocalRecordRef
	if err := json.NewDecoder(resp.Body).Decode(&refs); err != nil {
		return nil, fmt.Errorf("transport: failed to decode manifest from %s: %w", c.baseURL, err)
	}

	return refs, nil
}

// storedRecordDTO mirrors the JSON shape of storage.StoredRecord far
// enough to pull the wrapped message back out of a RecordsReadReply.
type storedRecordDTO struct {
	Message model.Message
}

type readReplyDTO struct {
	Entry *storedRecordDTO
}

func (c *remoteClient) Fetch(ctx context.Context, recordID string) (model.Message, error) {
	read := model.RecordsRead{MessageTimestamp: time.Now().UTC(), RecordID: recordID}

	var reply readReplyDTO

	if err := c.post(ctx, model.Message{Descriptor: read}, &reply); err != nil {
		return model.Message{}, err
	}

	if reply.Entry == nil {
		return model.Message{}, fmt.Errorf("transport: remote %s has no record %q", c.baseURL, recordID)
	}

	return reply.Entry.Message, nil
}

func (c *remoteClient) Push(ctx context.Context, _ string, msg model.Message) error {
	return c.post(ctx, msg, nil)
}

func (c *remoteClient) post(ctx context.Context, msg model.Message, out any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: request to %s failed: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)

		return fmt.Errorf("transport: %s returned status %d: %s", c.baseURL, resp.StatusCode, string(raw))
	}

	if out == nil {
		_, err := io.Copy(io.Discard, resp.Body)

		return err
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
