// Package handshake drives the challenge-token exchange with an embedded
// browser context: load the portal, inject a detection script and wait for
// the script to post a clearance token back.
package handshake

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"entrypass/internal/platform/metrics"
	"entrypass/internal/submission/browser"
	"entrypass/internal/submission/failure"
	"entrypass/pkg/platform/clock"
)

// State is the controller's position in idle -> loading -> extracting ->
// {token_acquired | timeout | errored}.
type State string

const (
	StateIdle          State = "idle"
	StateLoading       State = "loading"
	StateExtracting    State = "extracting"
	StateTokenAcquired State = "token_acquired"
	StateTimeout       State = "timeout"
	StateErrored       State = "errored"
)

func (s State) Terminal() bool {
	return s == StateTokenAcquired || s == StateTimeout || s == StateErrored
}

// errStreamClosed is reported when the page stops posting before a token.
var errStreamClosed = errors.New("browser message stream closed before a token arrived")

// Config bounds the wait. The deadline is MaxPolls * PollInterval on the
// controller's clock.
type Config struct {
	PollInterval    time.Duration
	MaxPolls        int
	MinTokenLength  int
	DetectionScript string
}

// DefaultDetectionScript posts TOKEN_EXTRACTED once the portal's challenge
// widget has produced a response token.
const DefaultDetectionScript = `(function(){
  var max = 60, n = 0;
  function post(t, p){ window.ReactNativeWebView.postMessage(JSON.stringify({type:t, payload:p})); }
  post("READY");
  var timer = setInterval(function(){
    n++;
    var el = document.querySelector('[name="cf-turnstile-response"]');
    if (el && el.value) { clearInterval(timer); post("TOKEN_EXTRACTED", {token: el.value}); return; }
    if (n >= max) { clearInterval(timer); post("TIMEOUT"); return; }
    post(n === 1 ? "NOT_READY" : "POLLING", {count: n, max: max});
  }, 500);
})();`

func DefaultConfig() Config {
	return Config{
		PollInterval:    500 * time.Millisecond,
		MaxPolls:        60,
		MinTokenLength:  100,
		DetectionScript: DefaultDetectionScript,
	}
}

// Result is the terminal outcome of one handshake. Error is set unless
// State is token_acquired.
type Result struct {
	State    State                `json:"state"`
	Token    string               `json:"-"`
	Polls    int                  `json:"polls"`
	History  []State              `json:"history"`
	Duration time.Duration        `json:"duration"`
	Error    *failure.ErrorResult `json:"error,omitempty"`
}

func (r Result) OK() bool { return r.State == StateTokenAcquired }

type Controller struct {
	factory    browser.Factory
	classifier *failure.Classifier
	cfg        Config
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
	method     string
	fallback   string
}

type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// WithFallback names the method suggested when the handshake fails.
func WithFallback(method string) Option {
	return func(ctl *Controller) { ctl.fallback = method }
}

func New(factory browser.Factory, classifier *failure.Classifier, cfg Config, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = def.MaxPolls
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = def.MinTokenLength
	}
	if cfg.DetectionScript == "" {
		cfg.DetectionScript = def.DetectionScript
	}
	c := &Controller{
		factory:    factory,
		classifier: classifier,
		cfg:        cfg,
		clock:      clock.Real(),
		logger:     slog.Default(),
		method:     "hybrid",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the state of one Acquire call.
type run struct {
	ctl       *Controller
	browser   browser.Browser
	closeOnce sync.Once
	result    Result
	started   time.Time
	attempt   int
}

// Acquire runs one handshake to a terminal state. It never returns a raw
// error: failures are classified into Result.Error for the given submission
// attempt. The browser context is closed exactly once before Acquire returns.
func (c *Controller) Acquire(ctx context.Context, portalURL string, attempt int) Result {
	r := &run{
		ctl:     c,
		started: c.clock.Now(),
		attempt: max(attempt, 1),
		result:  Result{State: StateIdle, History: []State{StateIdle}},
	}

	b, err := c.factory.Open(ctx)
	if err != nil {
		return r.fail(StateErrored, err)
	}
	r.browser = b

	r.enter(StateLoading)
	if err := b.Load(ctx, portalURL); err != nil {
		return r.fail(StateErrored, err)
	}

	r.enter(StateExtracting)
	if err := b.Inject(ctx, c.cfg.DetectionScript); err != nil {
		return r.fail(StateErrored, err)
	}

	return r.await(ctx, b.Messages())
}

func (r *run) await(ctx context.Context, messages <-chan browser.Message) Result {
	cfg := r.ctl.cfg
	tick := r.ctl.clock.After(cfg.PollInterval)
	for {
		// Messages already posted win over an elapsed poll tick.
		select {
		case msg, ok := <-messages:
			if res, done := r.handle(msg, ok); done {
				return res
			}
			continue
		default:
		}

		if r.result.Polls >= cfg.MaxPolls {
			return r.fail(StateTimeout, failure.ErrHandshakeTimeout)
		}

		select {
		case <-ctx.Done():
			return r.cancelled(ctx.Err())
		case msg, ok := <-messages:
			if res, done := r.handle(msg, ok); done {
				return res
			}
		case <-tick:
			r.result.Polls++
			if r.result.Polls < cfg.MaxPolls {
				tick = r.ctl.clock.After(cfg.PollInterval)
			}
		}
	}
}

func (r *run) handle(msg browser.Message, ok bool) (Result, bool) {
	if !ok {
		return r.fail(StateErrored, errStreamClosed), true
	}
	switch m := msg.(type) {
	case browser.TokenExtracted:
		token := strings.TrimSpace(m.Token)
		if len(token) < r.ctl.cfg.MinTokenLength {
			r.ctl.logger.Warn("rejecting implausible challenge token", "length", len(token))
			return r.fail(StateErrored, failure.ErrTokenMalformed), true
		}
		r.result.Token = token
		return r.finish(StateTokenAcquired), true
	case browser.Timeout:
		return r.fail(StateTimeout, failure.ErrHandshakeTimeout), true
	case browser.Polling:
		r.ctl.logger.Debug("handshake polling", "count", m.Count, "max", m.Max)
	case browser.NotReady:
		r.ctl.logger.Debug("handshake not ready", "reason", m.Reason)
	case browser.Ready:
		r.ctl.logger.Debug("detection script ready")
	default:
		r.ctl.logger.Debug("ignoring message during handshake", "type", msg.Type())
	}
	return Result{}, false
}

func (r *run) cancelled(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return r.fail(StateTimeout, err)
	}
	return r.fail(StateErrored, failure.ErrUserCancelled)
}

func (r *run) enter(s State) {
	r.result.State = s
	r.result.History = append(r.result.History, s)
}

func (r *run) fail(s State, err error) Result {
	r.result.Error = r.ctl.classifier.Classify(err, failure.Context{
		Operation: "token_handshake",
		Method:    r.ctl.method,
		Attempt:   r.attempt,
		Fallback:  r.ctl.fallback,
	})
	return r.finish(s)
}

func (r *run) finish(s State) Result {
	r.enter(s)
	r.closeOnce.Do(func() {
		if r.browser == nil {
			return
		}
		if err := r.browser.Close(); err != nil {
			r.ctl.logger.Warn("failed to close browser context", "error", err)
		}
	})
	r.result.Duration = r.ctl.clock.Since(r.started)
	r.ctl.metrics.ObserveHandshake(string(s), r.result.Duration)
	return r.result
}
