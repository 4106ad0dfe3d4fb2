package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Remote drives browser contexts hosted by a browser service over HTTP.
//
//	POST   {endpoint}/sessions                 -> {"id": "..."}
//	POST   {endpoint}/sessions/{id}/load       {"url": "..."}
//	POST   {endpoint}/sessions/{id}/inject     {"script": "..."}
//	GET    {endpoint}/sessions/{id}/messages   long poll, JSON array of envelopes
//	DELETE {endpoint}/sessions/{id}
type Remote struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	buffer   int
}

type RemoteOption func(*Remote)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

func WithLogger(logger *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = logger }
}

func NewRemote(endpoint string, opts ...RemoteOption) *Remote {
	r := &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 35 * time.Second},
		logger:   slog.Default(),
		buffer:   32,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a session and starts streaming its messages.
func (r *Remote) Open(ctx context.Context) (Browser, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := r.call(ctx, http.MethodPost, r.endpoint+"/sessions", nil, &created); err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	if created.ID == "" {
		return nil, errors.New("open browser session: empty session id")
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s := &remoteSession{
		remote:   r,
		base:     r.endpoint + "/sessions/" + created.ID,
		messages: make(chan Message, r.buffer),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.poll(pollCtx)
	return s, nil
}

func (r *Remote) call(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("browser service %s %s: %d %s", method, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type remoteSession struct {
	remote   *Remote
	base     string
	messages chan Message
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	closeErr error
}

func (s *remoteSession) Load(ctx context.Context, url string) error {
	return s.remote.call(ctx, http.MethodPost, s.base+"/load", map[string]string{"url": url}, nil)
}

func (s *remoteSession) Inject(ctx context.Context, script string) error {
	return s.remote.call(ctx, http.MethodPost, s.base+"/inject", map[string]string{"script": script}, nil)
}

func (s *remoteSession) Messages() <-chan Message { return s.messages }

// Close stops the poller and deletes the remote session.
func (s *remoteSession) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeErr = s.remote.call(ctx, http.MethodDelete, s.base, nil, nil)
	})
	return s.closeErr
}

func (s *remoteSession) poll(ctx context.Context) {
	defer close(s.done)
	defer close(s.messages)
	for {
		var batch []json.RawMessage
		if err := s.remote.call(ctx, http.MethodGet, s.base+"/messages", nil, &batch); err != nil {
			if ctx.Err() == nil {
				s.remote.logger.Warn("browser message stream ended", "session", s.base, "error", err)
			}
			return
		}
		for _, raw := range batch {
			msg, err := Decode(raw)
			if err != nil {
				s.remote.logger.Warn("dropping malformed browser message", "error", err)
				continue
			}
			select {
			case s.messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}
