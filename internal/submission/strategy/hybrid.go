package strategy

import (
	"context"

	"entrypass/internal/entry/models"
	"entrypass/internal/submission/handshake"
	"entrypass/internal/traveler"
)

// TokenAcquirer obtains a challenge-clearance token for a portal.
type TokenAcquirer interface {
	Acquire(ctx context.Context, portalURL string, attempt int) handshake.Result
}

// Hybrid acquires a challenge token through the embedded browser, then
// submits through the direct API with that token. It is the default method.
type Hybrid struct {
	direct    *DirectAPI
	handshake TokenAcquirer
}

func NewHybrid(direct *DirectAPI, acquirer TokenAcquirer) *Hybrid {
	return &Hybrid{direct: direct, handshake: acquirer}
}

func (h *Hybrid) Method() models.SubmissionMethod { return models.MethodHybrid }

func (h *Hybrid) Submit(ctx context.Context, data traveler.Data, cfg Config) Outcome {
	started := h.direct.clock.Now()
	if out, ok := h.direct.precheck(data, cfg, models.MethodHybrid, started); !ok {
		return out
	}

	res := h.handshake.Acquire(ctx, cfg.Destination.PortalURL, cfg.Attempt)
	if !res.OK() {
		h.direct.logger.WarnContext(ctx, "token handshake did not complete",
			"state", res.State, "polls", res.Polls)
		out := Outcome{
			Success:  false,
			Method:   models.MethodHybrid,
			Duration: h.direct.clock.Since(started),
			Error:    res.Error,
		}
		if out.Error == nil {
			out = h.direct.failed(errHandshakeIncomplete, cfg, models.MethodHybrid, started)
		}
		return out
	}
	return h.direct.post(ctx, data, cfg, res.Token, models.MethodHybrid, started)
}
