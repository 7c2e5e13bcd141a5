package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/OctoberEnd/chatbox/internal/coze"
)

// msgPollTimeout is surfaced when the attempt bound is exhausted before the
// turn reaches a terminal status.
const msgPollTimeout = "polling timed out"

// pollAndCollect queries the turn's status on a fixed interval until it
// completes, then fetches the message detail exactly once. Any status other
// than in_progress/completed, any transport or parse error on a tick, or
// exhaustion of the attempt bound ends the poll immediately; individual
// ticks are never retried.
func (o *Orchestrator) pollAndCollect(ctx context.Context, conversationID, chatID string, reply *Reply, emit func()) error {
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < o.opts.PollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		res, err := o.client.Retrieve(ctx, conversationID, chatID)
		if err != nil {
			return err
		}

		switch res.Status {
		case coze.StatusCompleted:
			return o.collectDetail(ctx, conversationID, chatID, reply, emit)
		case coze.StatusInProgress:
			slog.Debug("turn still in progress", "attempt", attempt+1)
		default:
			return serverError(res.Msg)
		}
	}
	return errors.New(msgPollTimeout)
}
