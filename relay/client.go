package relay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phanxgames/ardw"
)

// ============================================================
// Peer Client
// ============================================================

// ErrOutboxFull reports a message dropped because the client could not keep
// up with the local peer.
var ErrOutboxFull = errors.New("relay outbox full")

const (
	clientOutboxSize   = 64
	clientRetryDelay   = time.Second
	clientPostTimeout  = 5 * time.Second
	clientMaxEventSize = 1 << 20
)

// Client connects a local App to a relay. It satisfies ardw.Sender; Send
// never blocks the caller.
type Client struct {
	base   string
	id     string
	http   *http.Client
	stream *http.Client
	outbox chan []byte

	// RetryDelay spaces reconnect attempts.
	RetryDelay time.Duration
}

// NewClient returns a client for the relay at baseURL with a fresh peer id.
func NewClient(baseURL string) *Client {
	return &Client{
		base:       strings.TrimRight(baseURL, "/"),
		id:         uuid.NewString(),
		http:       &http.Client{Timeout: clientPostTimeout},
		stream:     &http.Client{},
		outbox:     make(chan []byte, clientOutboxSize),
		RetryDelay: clientRetryDelay,
	}
}

// ID returns the peer id sent with every request.
func (c *Client) ID() string { return c.id }

// Send queues msg for delivery by Run.
func (c *Client) Send(msg ardw.Message) error {
	data, err := ardw.EncodeMessage(msg)
	if err != nil {
		return err
	}
	select {
	case c.outbox <- data:
		return nil
	default:
		return fmt.Errorf("send %s: %w", msg.Kind(), ErrOutboxFull)
	}
}

// Run delivers queued messages and streams peer messages to deliver until
// ctx is cancelled, reconnecting whenever the stream drops. deliver is
// called from Run's goroutine; pass (*ardw.App).Post to hand messages to the
// interaction loop.
func (c *Client) Run(ctx context.Context, deliver func(ardw.Message) bool) error {
	go c.drain(ctx)
	for {
		err := c.subscribe(ctx, deliver)
		if ctx.Err() != nil {
			return nil
		}
		ardw.Logger().Warn("relay stream lost", "url", c.base, "err", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.RetryDelay):
		}
	}
}

func (c *Client) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.outbox:
			if err := c.post(ctx, data); err != nil {
				ardw.Logger().Warn("relay publish failed", "err", err)
			}
		}
	}
}

func (c *Client) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/events", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(PeerHeader, c.id)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("publish: %s", resp.Status)
	}
	return nil
}

func (c *Client) subscribe(ctx context.Context, deliver func(ardw.Message) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(PeerHeader, c.id)
	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subscribe: %s", resp.Status)
	}
	ardw.Logger().Info("relay connected", "url", c.base, "peer", c.id)

	return readEvents(resp.Body, func(data []byte) {
		msg, err := ardw.DecodeMessage(data)
		if err != nil {
			ardw.Logger().Warn("dropping relay message", "err", err)
			return
		}
		deliver(msg)
	})
}

// readEvents parses a Server-Sent Events stream and calls fn with the data
// of each event. Comment lines and fields other than data are skipped.
func readEvents(r io.Reader, fn func([]byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), clientMaxEventSize)
	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			if data.Len() > 0 {
				fn(bytes.Clone(data.Bytes()))
				data.Reset()
			}
		case line[0] == ':':
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimPrefix(line[len("data:"):], []byte(" ")))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// Fetch returns the body of a relay document endpoint such as "/pcbdata".
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// LoadDocuments fetches and parses the board and schematic served by the
// relay.
func (c *Client) LoadDocuments(ctx context.Context) (*ardw.Board, *ardw.Schematic, error) {
	raw, err := c.Fetch(ctx, "/pcbdata")
	if err != nil {
		return nil, nil, &ardw.DataLoadError{Document: "board", Path: c.base + "/pcbdata", Err: err}
	}
	board, err := ardw.ParseBoard(raw)
	if err != nil {
		return nil, nil, err
	}
	raw, err = c.Fetch(ctx, "/schdata")
	if err != nil {
		return nil, nil, &ardw.DataLoadError{Document: "schematic", Path: c.base + "/schdata", Err: err}
	}
	sch, err := ardw.ParseSchematic(raw)
	if err != nil {
		return nil, nil, err
	}
	return board, sch, nil
}
