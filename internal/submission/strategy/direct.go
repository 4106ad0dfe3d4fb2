package strategy

import (
	"context"
	"strings"
	"time"

	"entrypass/internal/entry/models"
	"entrypass/internal/submission/failure"
	"entrypass/internal/submission/validation"
	"entrypass/internal/traveler"
)

// DirectAPI posts the serialized traveler data straight to the destination's
// submission endpoint. No browser context is involved.
type DirectAPI struct {
	base
	client PortalClient
}

func NewDirectAPI(client PortalClient, validator *validation.Validator, classifier *failure.Classifier, opts ...Option) *DirectAPI {
	return &DirectAPI{base: newBase(validator, classifier, opts), client: client}
}

func (d *DirectAPI) Method() models.SubmissionMethod { return models.MethodAPI }

func (d *DirectAPI) Submit(ctx context.Context, data traveler.Data, cfg Config) Outcome {
	started := d.clock.Now()
	if out, ok := d.precheck(data, cfg, models.MethodAPI, started); !ok {
		return out
	}
	return d.post(ctx, data, cfg, "", models.MethodAPI, started)
}

// post sends the payload, attaching token in the destination's token header
// when present.
func (d *DirectAPI) post(ctx context.Context, data traveler.Data, cfg Config, token string, method models.SubmissionMethod, started time.Time) Outcome {
	headers := map[string]string{}
	if token != "" {
		headers[cfg.Destination.TokenHeader] = token
	}

	conf, err := d.client.Submit(ctx, cfg.Destination.SubmitEndpoint, NewPayload(data), headers)
	if err != nil {
		d.logger.WarnContext(ctx, "direct submission failed", "method", method, "error", err)
		return d.failed(err, cfg, method, started)
	}
	if strings.TrimSpace(conf.ArrCardNo) == "" || strings.TrimSpace(conf.QRURI) == "" {
		return d.failed(failure.ErrIncompleteConfirmation, cfg, method, started)
	}
	return d.succeeded(conf, method, started)
}
