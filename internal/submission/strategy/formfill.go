package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"entrypass/internal/destination"
	"entrypass/internal/entry/models"
	"entrypass/internal/submission/browser"
	"entrypass/internal/submission/failure"
	"entrypass/internal/submission/validation"
	"entrypass/internal/traveler"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/retry"
)

var (
	errHandshakeIncomplete = errors.New("token handshake ended without a token")
	errStreamClosed        = errors.New("browser message stream closed")
	errWaitElapsed         = errors.New("no browser message before the wait elapsed")
)

// FormFillConfig bounds the per-field retry loop and the final wait for the
// portal's confirmation.
type FormFillConfig struct {
	// FieldAttempts is how many times a field is tried before it is given up.
	FieldAttempts int
	// FieldBackoff is the fixed wait between attempts and the wait for each
	// attempt's FIELD_RESULT.
	FieldBackoff time.Duration
	// SubmitTimeout bounds the wait for SUBMISSION_COMPLETE or
	// SUBMISSION_FAILED.
	SubmitTimeout time.Duration
}

func DefaultFormFillConfig() FormFillConfig {
	return FormFillConfig{FieldAttempts: 15, FieldBackoff: 200 * time.Millisecond, SubmitTimeout: 60 * time.Second}
}

// FormFill drives the portal's own form in an embedded browser. Each logical
// field is located by the destination's selector ladder and retried a
// bounded number of times; fields that cannot be filled are reported in
// Outcome.UnfilledFields and the form is submitted with the rest.
type FormFill struct {
	base
	factory browser.Factory
	cfg     FormFillConfig
}

func NewFormFill(factory browser.Factory, cfg FormFillConfig, validator *validation.Validator, classifier *failure.Classifier, opts ...Option) *FormFill {
	def := DefaultFormFillConfig()
	if cfg.FieldAttempts <= 0 {
		cfg.FieldAttempts = def.FieldAttempts
	}
	if cfg.FieldBackoff <= 0 {
		cfg.FieldBackoff = def.FieldBackoff
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = def.SubmitTimeout
	}
	return &FormFill{base: newBase(validator, classifier, opts), factory: factory, cfg: cfg}
}

func (f *FormFill) Method() models.SubmissionMethod { return models.MethodWebView }

func (f *FormFill) Submit(ctx context.Context, data traveler.Data, cfg Config) Outcome {
	started := f.clock.Now()
	if out, ok := f.precheck(data, cfg, models.MethodWebView, started); !ok {
		return out
	}

	b, err := f.factory.Open(ctx)
	if err != nil {
		return f.failed(err, cfg, models.MethodWebView, started)
	}
	defer func() {
		if err := b.Close(); err != nil {
			f.logger.Warn("failed to close browser context", "error", err)
		}
	}()

	if err := b.Load(ctx, cfg.Destination.PortalURL); err != nil {
		return f.failed(err, cfg, models.MethodWebView, started)
	}

	unfilled, err := f.fillAll(ctx, b, data, cfg.Destination)
	if err != nil {
		return f.failed(err, cfg, models.MethodWebView, started)
	}

	conf, err := f.submitForm(ctx, b)
	if err != nil {
		out := f.failed(err, cfg, models.MethodWebView, started)
		out.UnfilledFields = unfilled
		return out
	}
	out := f.succeeded(conf, models.MethodWebView, started)
	out.UnfilledFields = unfilled
	return out
}

// fillAll fills every non-blank field in declaration order and returns the
// fields it gave up on. Only a closed stream or a cancelled context abort.
func (f *FormFill) fillAll(ctx context.Context, b browser.Browser, data traveler.Data, dest destination.Config) ([]string, error) {
	values := data.Fields()
	var unfilled []string
	for _, rule := range dest.Fields {
		value := strings.TrimSpace(values[rule.Name])
		if value == "" {
			continue
		}
		filled, err := f.fillField(ctx, b, rule.Name, value, dest.SelectorsFor(rule.Name))
		if err != nil {
			return nil, err
		}
		if !filled {
			f.logger.WarnContext(ctx, "giving up on form field", "field", rule.Name, "attempts", f.cfg.FieldAttempts)
			f.metrics.IncrementUnfilled(rule.Name)
			unfilled = append(unfilled, rule.Name)
		}
	}
	return unfilled, nil
}

func (f *FormFill) fillField(ctx context.Context, b browser.Browser, field, value string, selectors []destination.Selector) (bool, error) {
	script, err := fillScript(field, value, selectors)
	if err != nil {
		return false, err
	}
	loop := retry.Loop{
		MaxAttempts: f.cfg.FieldAttempts,
		Backoff:     retry.Fixed(f.cfg.FieldBackoff),
		Clock:       f.clock,
	}
	_, err = loop.Do(ctx, func(ctx context.Context, _ int) (bool, error) {
		if err := b.Inject(ctx, script); err != nil {
			return false, err
		}
		var result browser.FieldResult
		err := f.await(ctx, b.Messages(), f.cfg.FieldBackoff, func(m browser.Message) bool {
			fr, ok := m.(browser.FieldResult)
			if ok && fr.Field == field {
				result = fr
				return true
			}
			return false
		})
		if errors.Is(err, errWaitElapsed) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if result.Filled {
			f.logger.DebugContext(ctx, "form field filled", "field", field, "heuristic", result.Heuristic)
		}
		return result.Filled, nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, retry.ErrExhausted):
		return false, nil
	case errors.Is(err, browser.ErrClosed):
		return false, errStreamClosed
	default:
		return false, err
	}
}

func (f *FormFill) submitForm(ctx context.Context, b browser.Browser) (Confirmation, error) {
	if err := b.Inject(ctx, submitScript); err != nil {
		return Confirmation{}, err
	}
	var (
		conf     Confirmation
		rejected string
	)
	err := f.await(ctx, b.Messages(), f.cfg.SubmitTimeout, func(m browser.Message) bool {
		switch v := m.(type) {
		case browser.SubmissionComplete:
			conf = Confirmation{ArrCardNo: v.ArrCardNo, QRURI: v.QRURI, PDFPath: v.PDFPath}
			return true
		case browser.SubmissionFailed:
			rejected = v.Reason
			if rejected == "" {
				rejected = "portal rejected the form"
			}
			return true
		}
		return false
	})
	switch {
	case errors.Is(err, errWaitElapsed):
		return Confirmation{}, dErrors.New(dErrors.CodeTimeout, "portal did not confirm the submission in time")
	case err != nil:
		return Confirmation{}, err
	case rejected != "":
		return Confirmation{}, dErrors.New(dErrors.CodeValidation, rejected)
	case strings.TrimSpace(conf.ArrCardNo) == "" || strings.TrimSpace(conf.QRURI) == "":
		return Confirmation{}, failure.ErrIncompleteConfirmation
	}
	return conf, nil
}

// await reads messages until match accepts one, the wait elapses on the
// strategy clock, the stream closes or ctx ends. Messages already queued
// are considered before the timer.
func (f *FormFill) await(ctx context.Context, messages <-chan browser.Message, wait time.Duration, match func(browser.Message) bool) error {
drain:
	for {
		select {
		case m, ok := <-messages:
			if !ok {
				return errStreamClosed
			}
			if match(m) {
				return nil
			}
		default:
			break drain
		}
	}

	timer := f.clock.After(wait)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-messages:
			if !ok {
				return errStreamClosed
			}
			if match(m) {
				return nil
			}
		case <-timer:
			return errWaitElapsed
		}
	}
}

const submitScript = `(function(){
  var btn = document.querySelector('button[type="submit"]');
  if (!btn) { window.ReactNativeWebView.postMessage(JSON.stringify({type:"SUBMISSION_FAILED", payload:{reason:"submit button not found"}})); return; }
  btn.click();
})();`

// fillScript builds the script that tries each selector heuristic in order
// and posts FIELD_RESULT for field.
func fillScript(field, value string, selectors []destination.Selector) (string, error) {
	args, err := json.Marshal(struct {
		Field     string                 `json:"field"`
		Value     string                 `json:"value"`
		Selectors []destination.Selector `json:"selectors"`
	}{field, value, selectors})
	if err != nil {
		return "", fmt.Errorf("encode fill arguments: %w", err)
	}
	return `(function(a){
  function find(s){
    switch (s.kind) {
      case "exact_attribute": return document.querySelector('[name="'+s.value+'"],[id="'+s.value+'"]');
      case "relaxed_attribute": return document.querySelector('[name*="'+s.value+'" i],[id*="'+s.value+'" i]');
      case "placeholder": return document.querySelector('[placeholder*="'+s.value+'" i]');
      case "label":
        var labels = document.querySelectorAll('label');
        for (var i = 0; i < labels.length; i++) {
          if (labels[i].textContent.toLowerCase().indexOf(s.value.toLowerCase()) >= 0) {
            return labels[i].control || document.getElementById(labels[i].htmlFor);
          }
        }
    }
    return null;
  }
  for (var i = 0; i < a.selectors.length; i++) {
    var el = find(a.selectors[i]);
    if (el) {
      el.value = a.value;
      el.dispatchEvent(new Event('input', {bubbles: true}));
      el.dispatchEvent(new Event('change', {bubbles: true}));
      window.ReactNativeWebView.postMessage(JSON.stringify({type:"FIELD_RESULT", payload:{field:a.field, filled:true, heuristic:a.selectors[i].kind}}));
      return;
    }
  }
  window.ReactNativeWebView.postMessage(JSON.stringify({type:"FIELD_RESULT", payload:{field:a.field, filled:false}}));
})(` + string(args) + `);`, nil
}
