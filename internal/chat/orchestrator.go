package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/OctoberEnd/chatbox/internal/auth"
	"github.com/OctoberEnd/chatbox/internal/coze"
	"github.com/OctoberEnd/chatbox/internal/sse"
)

// msgRequestFailed is the generic display string used when the server did
// not supply one.
const msgRequestFailed = "request failed"

// maxAuthRetries bounds the refresh-and-replay path: one replay of the
// original request per submitted turn, never more.
const maxAuthRetries = 1

// Options configures an Orchestrator.
type Options struct {
	BotID  string
	UserID string
	// Stream selects the delivery mode requested from the service: a live
	// event stream, or synchronous submit followed by status polling.
	Stream          bool
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Orchestrator ties the transport adapter, stream decoder, polling retriever
// and credential refresh together for one turn at a time.
type Orchestrator struct {
	client *coze.Client
	creds  *auth.Manager
	opts   Options
}

// New creates an Orchestrator. Zero polling options get the service
// defaults (2s interval, 150 attempts).
func New(client *coze.Client, creds *auth.Manager, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.PollMaxAttempts <= 0 {
		opts.PollMaxAttempts = 150
	}
	return &Orchestrator{client: client, creds: creds, opts: opts}
}

// SubmitTurn submits one user turn and drives it to a terminal state.
// onUpdate (optional) receives a snapshot of the reply after every mutation
// and once more at terminal; the returned Reply is the terminal snapshot.
//
// Cancelling ctx abandons all further network activity for the turn; the
// reply then keeps whatever text had accumulated and carries no error.
func (o *Orchestrator) SubmitTurn(ctx context.Context, sess *Session, turn *Turn, onUpdate func(Reply)) Reply {
	reply := &Reply{Role: RoleAssistant, Suggestions: []string{}}
	emit := func() {
		if onUpdate != nil {
			onUpdate(reply.snapshot())
		}
	}

	msg, err := turn.Message()
	if err != nil {
		return o.finish(reply, err, nil, emit)
	}

	msgs := append(sess.History(), msg)
	err = o.submit(ctx, msgs, reply, emit, maxAuthRetries)

	if err == nil && ctx.Err() == nil {
		// Only a completed turn enters the session history that future
		// turns resend.
		sess.append(msg, coze.Message{Role: RoleAssistant, Content: reply.Text})
	}
	return o.finish(reply, err, ctx, emit)
}

// finish applies terminal normalization: cancellation is silent, empty
// suggestions collapse to absent, and the reply is marked done.
func (o *Orchestrator) finish(reply *Reply, err error, ctx context.Context, emit func()) Reply {
	cancelled := ctx != nil && ctx.Err() != nil
	if err != nil && !cancelled {
		reply.Err = err.Error()
		slog.Debug("turn failed", "error", err)
	}
	if len(reply.Suggestions) == 0 {
		reply.Suggestions = nil
	}
	reply.Done = true
	emit()
	return reply.snapshot()
}

// submit issues the chat-submit call and dispatches on the delivery shape.
// retriesLeft structurally bounds the credential refresh-and-replay path.
func (o *Orchestrator) submit(ctx context.Context, msgs []coze.Message, reply *Reply, emit func(), retriesLeft int) error {
	res, err := o.client.CreateChat(ctx, coze.ChatRequest{
		BotID:              o.opts.BotID,
		UserID:             o.opts.UserID,
		Stream:             o.opts.Stream,
		AutoSaveHistory:    true,
		AdditionalMessages: msgs,
	})
	if err != nil {
		return err
	}

	if res.Stream != nil {
		return o.consumeStream(ctx, res.Stream, reply, emit)
	}

	switch {
	case res.Code == coze.CodeOK && !o.opts.Stream:
		return o.pollAndCollect(ctx, res.Chat.ConversationID, res.Chat.ID, reply, emit)

	case res.Code == coze.CodeAuthExpired:
		if retriesLeft <= 0 {
			// Second auth failure on the replayed request: terminal.
			return serverError(res.Msg)
		}
		if err := o.creds.Refresh(ctx); err != nil {
			return err
		}
		slog.Debug("replaying turn after credential refresh")
		return o.submit(ctx, msgs, reply, emit, retriesLeft-1)

	default:
		return serverError(res.Msg)
	}
}

// consumeStream decodes the open event stream into the reply, emitting a
// snapshot after every mutation.
func (o *Orchestrator) consumeStream(ctx context.Context, body io.ReadCloser, reply *Reply, emit func()) error {
	defer body.Close()

	dec := sse.NewDecoder(body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case ev.IsAnswerDelta():
			reply.Text += ev.Content
			emit()
		case ev.Type == coze.MessageTypeFollowUp:
			reply.Suggestions = append(reply.Suggestions, ev.Content)
			emit()
		case ev.Status == coze.StatusFailed:
			if ev.LastError != nil && ev.LastError.Msg != "" {
				return errors.New(ev.LastError.Msg)
			}
			return errors.New(msgRequestFailed)
		}
		// Other event kinds are ignored for forward compatibility.
	}
}

// collectDetail fetches the completed turn's message list and folds it into
// the reply: the first answer item becomes the text, every follow_up item a
// suggestion.
func (o *Orchestrator) collectDetail(ctx context.Context, conversationID, chatID string, reply *Reply, emit func()) error {
	res, err := o.client.MessageList(ctx, conversationID, chatID)
	if err != nil {
		return err
	}
	if res.Code != coze.CodeOK {
		return serverError(res.Msg)
	}

	for _, item := range res.Items {
		switch item.Type {
		case coze.MessageTypeAnswer:
			if reply.Text == "" {
				reply.Text = item.Content
			}
		case coze.MessageTypeFollowUp:
			reply.Suggestions = append(reply.Suggestions, item.Content)
		}
	}
	emit()
	return nil
}

func serverError(msg string) error {
	if msg == "" {
		msg = msgRequestFailed
	}
	return errors.New(msg)
}
