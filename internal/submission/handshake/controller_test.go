package handshake

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"entrypass/internal/submission/browser"
	"entrypass/internal/submission/failure"
	"entrypass/pkg/platform/clock"
	"entrypass/pkg/testutil"
)

var validToken = strings.Repeat("0.AbCdEf", 20)

type HandshakeSuite struct {
	suite.Suite
	clock *clock.FakeClock
	page  *browser.Fake
	cfg   Config
}

func TestHandshakeSuite(t *testing.T) {
	suite.Run(t, new(HandshakeSuite))
}

func (s *HandshakeSuite) SetupTest() {
	s.clock = clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), clock.AutoAdvance())
	s.page = browser.NewFake(16)
	s.cfg = Config{PollInterval: 500 * time.Millisecond, MaxPolls: 6, MinTokenLength: 100}
}

func (s *HandshakeSuite) controller(factory browser.Factory) *Controller {
	return New(factory, failure.NewClassifier(failure.WithClock(s.clock)), s.cfg,
		WithClock(s.clock),
		WithLogger(testutil.DiscardLogger()),
		WithFallback("webview"),
	)
}

func (s *HandshakeSuite) acquire() Result {
	return s.controller(browser.NewFakeFactory(s.page)).Acquire(context.Background(), "https://portal.example/arrival", 1)
}

// ===========================================
// Success
// ===========================================

func (s *HandshakeSuite) TestTokenAcquired() {
	s.page.OnInject = func(f *browser.Fake, _ string) {
		f.Emit(browser.Ready{}, browser.NotReady{}, browser.Polling{Count: 2, Max: 60},
			browser.TokenExtracted{Token: validToken})
	}

	res := s.acquire()

	s.True(res.OK())
	s.Equal(validToken, res.Token)
	s.Nil(res.Error)
	s.Equal([]State{StateIdle, StateLoading, StateExtracting, StateTokenAcquired}, res.History)
	s.Equal([]string{"https://portal.example/arrival"}, s.page.Loaded())
	s.Equal([]string{DefaultDetectionScript}, s.page.Injected())
	s.Equal(1, s.page.CloseCalls())
}

// ===========================================
// Timeout
// ===========================================

func (s *HandshakeSuite) TestTimeout_NoTokenBeforeDeadline() {
	s.page.OnInject = func(f *browser.Fake, _ string) {
		f.Emit(browser.Ready{}, browser.NotReady{Reason: "challenge"})
	}

	res := s.acquire()

	s.Equal(StateTimeout, res.State)
	s.Equal(s.cfg.MaxPolls, res.Polls)
	s.Equal(time.Duration(s.cfg.MaxPolls)*s.cfg.PollInterval, res.Duration)
	s.Require().NotNil(res.Error)
	s.Equal(failure.CategoryTimeout, res.Error.Category)
	s.True(res.Error.Recoverable)
	s.Equal("webview", res.Error.SuggestedFallback)
	s.Equal(1, s.page.CloseCalls(), "browser torn down on timeout")
}

func (s *HandshakeSuite) TestTimeout_ScriptGivesUp() {
	s.page.OnInject = func(f *browser.Fake, _ string) {
		f.Emit(browser.Timeout{})
	}

	res := s.acquire()
	s.Equal(StateTimeout, res.State)
	s.Equal(failure.CategoryTimeout, res.Error.Category)
}

func (s *HandshakeSuite) TestTimeout_ContextDeadline() {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	s.clock = clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	res := s.controller(browser.NewFakeFactory(s.page)).Acquire(ctx, "https://portal.example", 1)
	s.Equal(StateTimeout, res.State)
	s.Equal(failure.CategoryTimeout, res.Error.Category)
	s.Equal(1, s.page.CloseCalls())
}

// ===========================================
// Errors
// ===========================================

func (s *HandshakeSuite) TestShortTokenIsMalformed() {
	s.page.OnInject = func(f *browser.Fake, _ string) {
		f.Emit(browser.TokenExtracted{Token: "abc"})
	}

	res := s.acquire()

	s.Equal(StateErrored, res.State)
	s.Empty(res.Token)
	s.Require().NotNil(res.Error)
	s.Equal(failure.ErrTokenMalformed.Error(), res.Error.TechnicalMessage)
	s.NotEqual(failure.CategoryValidation, res.Error.Category, "the traveler's details are not at fault")
	s.Contains(res.Error.UserMessage, "security check")
	s.True(res.Error.Recoverable)
	s.Equal("webview", res.Error.SuggestedFallback)
}

func (s *HandshakeSuite) TestFailuresAreClassifiedForTheCallersAttempt() {
	s.page.OnInject = func(f *browser.Fake, _ string) {
		f.Emit(browser.Timeout{})
	}
	first := s.controller(browser.NewFakeFactory(s.page)).Acquire(context.Background(), "https://portal.example", 1)

	s.page = browser.NewFake(16)
	s.page.OnInject = func(f *browser.Fake, _ string) {
		f.Emit(browser.Timeout{})
	}
	third := s.controller(browser.NewFakeFactory(s.page)).Acquire(context.Background(), "https://portal.example", 3)

	s.Require().NotNil(first.Error)
	s.Require().NotNil(third.Error)
	s.Equal(2*time.Second, first.Error.RetryDelay)
	s.Equal(8*time.Second, third.Error.RetryDelay)
}

func (s *HandshakeSuite) TestStreamClosedBeforeToken() {
	s.page.OnInject = func(f *browser.Fake, _ string) {
		f.Emit(browser.Ready{})
		f.End()
	}

	res := s.acquire()
	s.Equal(StateErrored, res.State)
	s.Equal(failure.CategorySystem, res.Error.Category)
	s.False(res.Error.Recoverable)
}

func (s *HandshakeSuite) TestCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.clock = clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	res := s.controller(browser.NewFakeFactory(s.page)).Acquire(ctx, "https://portal.example", 1)
	s.Equal(StateErrored, res.State)
	s.Equal(failure.CategoryUserCancelled, res.Error.Category)
	s.Equal(1, s.page.CloseCalls())
}

func (s *HandshakeSuite) TestLoadFailureClosesBrowser() {
	s.page.LoadErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	res := s.acquire()
	s.Equal(StateErrored, res.State)
	s.Equal([]State{StateIdle, StateLoading, StateErrored}, res.History)
	s.Equal(1, s.page.CloseCalls())
}

func (s *HandshakeSuite) TestOpenFailure() {
	factory := browser.NewFakeFactory()
	factory.OpenErr = errors.New("no browser available")

	res := s.controller(factory).Acquire(context.Background(), "https://portal.example", 1)
	s.Equal(StateErrored, res.State)
	s.Equal([]State{StateIdle, StateErrored}, res.History)
	s.NotEmpty(res.Error.ErrorID)
}
