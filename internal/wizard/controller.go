package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"reportbot/internal/domain"
	"reportbot/internal/metrics"
)

// Controller is the wizard state machine. It consumes inbound events,
// dispatches each through an explicit phase × event-kind transition
// table, and hands the finished post to the delivery gateway. Any
// combination absent from the table is a designed no-op: the event is
// dropped without a reply and without touching the session.
type Controller struct {
	sessions *Store
	prompts  Prompts
	gateway  domain.DeliveryGateway
	target   domain.TargetResolver
	archive  domain.ReportArchive
	bus      domain.MessageBus
	logger   *slog.Logger

	table map[Phase]map[domain.EventKind]handlerFunc

	// queues serialize event handling per user: one drain goroutine per
	// user at a time, so a session is never mutated concurrently.
	mu     sync.Mutex
	queues map[int64]*userQueue
}

type handlerFunc func(ctx context.Context, ev domain.Event)

type userQueue struct {
	pending []domain.Event
	running bool
}

// ControllerConfig holds all dependencies of the wizard controller.
type ControllerConfig struct {
	Sessions *Store
	Prompts  Prompts
	Gateway  domain.DeliveryGateway
	Target   domain.TargetResolver
	Archive  domain.ReportArchive // optional
	Bus      domain.MessageBus
	Logger   *slog.Logger
}

func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		sessions: cfg.Sessions,
		prompts:  cfg.Prompts,
		gateway:  cfg.Gateway,
		target:   cfg.Target,
		archive:  cfg.Archive,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		queues:   make(map[int64]*userQueue),
	}
	c.table = c.buildTable()
	return c
}

// buildTable enumerates every reachable phase × event-kind transition.
// The start event is accepted in every phase: a new /start supersedes
// whatever session exists. Cancel is handled before the table lookup
// and is therefore accepted everywhere.
func (c *Controller) buildTable() map[Phase]map[domain.EventKind]handlerFunc {
	t := map[Phase]map[domain.EventKind]handlerFunc{
		PhaseNone: {
			domain.EventStart: c.handleStart,
		},
		PhaseCategory: {
			domain.EventStart:  c.handleStart,
			domain.EventChoice: c.handleCategory,
		},
		PhaseMedia: {
			domain.EventStart:  c.handleStart,
			domain.EventPhoto:  c.handlePhoto,
			domain.EventClip:   c.handleClip,
			domain.EventChoice: c.handleMediaChoice,
		},
		PhaseConfirm: {
			domain.EventStart:  c.handleStart,
			domain.EventChoice: c.handleConfirmChoice,
		},
	}

	for phase, step := range textSteps {
		step := step
		t[phase] = map[domain.EventKind]handlerFunc{
			domain.EventStart: c.handleStart,
			domain.EventText: func(ctx context.Context, ev domain.Event) {
				c.handleTextStep(ctx, ev, step)
			},
		}
	}

	return t
}

// Run consumes inbound events until the context is cancelled. Events
// for the same user are handled strictly in order; different users
// proceed concurrently.
func (c *Controller) Run(ctx context.Context) {
	c.logger.Info("wizard controller started")

	inbound := c.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("wizard controller stopping")
			return
		case ev, ok := <-inbound:
			if !ok {
				c.logger.Info("inbound channel closed, wizard controller stopping")
				return
			}
			c.enqueue(ctx, ev)
		}
	}
}

func (c *Controller) enqueue(ctx context.Context, ev domain.Event) {
	c.mu.Lock()
	q := c.queues[ev.UserID]
	if q == nil {
		q = &userQueue{}
		c.queues[ev.UserID] = q
	}
	q.pending = append(q.pending, ev)
	if !q.running {
		q.running = true
		go c.drain(ctx, ev.UserID, q)
	}
	c.mu.Unlock()
}

func (c *Controller) drain(ctx context.Context, userID int64, q *userQueue) {
	for {
		c.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			delete(c.queues, userID)
			c.mu.Unlock()
			return
		}
		ev := q.pending[0]
		q.pending = q.pending[1:]
		c.mu.Unlock()

		c.HandleEvent(ctx, ev)
	}
}

// HandleEvent processes one event synchronously against the transition
// table. Run feeds it through the per-user queues; tests call it
// directly.
func (c *Controller) HandleEvent(ctx context.Context, ev domain.Event) {
	if ev.Kind == domain.EventCancel {
		c.handleCancel(ctx, ev)
		return
	}

	phase := c.sessions.Get(ev.UserID).Phase
	handlers, ok := c.table[phase]
	if !ok {
		return
	}
	handler, ok := handlers[ev.Kind]
	if !ok {
		c.logger.Debug("event ignored for phase",
			"phase", phase.String(),
			"kind", ev.Kind.String(),
			"user", ev.UserID,
		)
		return
	}

	handler(ctx, ev)
	metrics.ActiveSessions.Set(int64(c.sessions.Active()))
}

func (c *Controller) handleStart(ctx context.Context, ev domain.Event) {
	c.sessions.Clear(ev.UserID)
	c.sessions.SetPhase(ev.UserID, PhaseCategory)
	metrics.ReportsStarted.Inc()
	c.reply(ev.ChatID, c.prompts.Category, categoryButtons())
}

func (c *Controller) handleCancel(ctx context.Context, ev domain.Event) {
	if c.sessions.Get(ev.UserID).Phase != PhaseNone {
		metrics.ReportsCancelled.Inc()
	}
	c.sessions.Clear(ev.UserID)
	metrics.ActiveSessions.Set(int64(c.sessions.Active()))
	c.reply(ev.ChatID, c.prompts.Cancelled, nil)
}

func (c *Controller) handleCategory(ctx context.Context, ev domain.Event) {
	cat, ok := strings.CutPrefix(ev.Data, "category:")
	if !ok || !ValidCategory(cat) {
		// Invalid choice values are dropped the same way as
		// out-of-phase events: no reply, no mutation.
		return
	}
	c.sessions.SetField(ev.UserID, FieldCategory, cat)
	c.sessions.SetPhase(ev.UserID, PhaseTitle)
	c.reply(ev.ChatID, c.prompts.Title, cancelButtons())
}

func (c *Controller) handleTextStep(ctx context.Context, ev domain.Event, step Step) {
	value := ev.Text
	if step.Normalize {
		value = Normalize(value)
	}
	c.sessions.SetField(ev.UserID, step.Field, value)
	c.sessions.SetPhase(ev.UserID, step.Next)

	if step.Next == PhaseMedia {
		c.reply(ev.ChatID, c.prompts.Media, mediaButtons())
		return
	}

	category := c.sessions.Get(ev.UserID).Fields[FieldCategory]
	c.reply(ev.ChatID, c.prompts.For(step.Next, category), cancelButtons())
}

// handlePhoto and handleClip accumulate silently: no reply, no phase
// change, so the user can keep sending media in a burst.
func (c *Controller) handlePhoto(ctx context.Context, ev domain.Event) {
	c.sessions.AddPhoto(ev.UserID, ev.FileID)
}

func (c *Controller) handleClip(ctx context.Context, ev domain.Event) {
	c.sessions.AddClip(ev.UserID, ev.FileID)
}

func (c *Controller) handleMediaChoice(ctx context.Context, ev domain.Event) {
	if ev.Data != "media:done" {
		return
	}
	c.sessions.SetPhase(ev.UserID, PhaseConfirm)
	post := RenderPost(c.sessions.Get(ev.UserID).Fields)
	c.reply(ev.ChatID, c.prompts.Preview+"\n\n"+post, confirmButtons())
}

func (c *Controller) handleConfirmChoice(ctx context.Context, ev domain.Event) {
	switch ev.Data {
	case "confirm:restart":
		c.sessions.Clear(ev.UserID)
		c.sessions.SetPhase(ev.UserID, PhaseCategory)
		c.reply(ev.ChatID, c.prompts.Category, categoryButtons())
	case "confirm:send":
		c.deliver(ctx, ev)
	}
}

// deliver sends the post and all accumulated media to the target chat.
// A missing target or a gateway fault leaves the session in CONFIRM so
// the user can fix things and retry without re-filling the form.
func (c *Controller) deliver(ctx context.Context, ev domain.Event) {
	chatID, ok, err := c.target.Resolve(ctx)
	if err != nil {
		c.logger.Error("target lookup failed", "err", err)
		c.reply(ev.ChatID, c.prompts.NoTarget, confirmButtons())
		return
	}
	if !ok {
		c.reply(ev.ChatID, c.prompts.NoTarget, confirmButtons())
		return
	}

	sess := c.sessions.Get(ev.UserID)
	post := RenderPost(sess.Fields)

	start := time.Now()
	if err := c.sendAll(ctx, chatID, post, sess); err != nil {
		metrics.DeliveryFaults.Inc()
		c.logger.Warn("delivery failed",
			"user", ev.UserID,
			"target", chatID,
			"err", err,
		)
		c.reply(ev.ChatID, fmt.Sprintf(c.prompts.SendFailed, faultDetail(err)), confirmButtons())
		return
	}
	metrics.DeliveryLatency.Observe(time.Since(start).Seconds())

	if c.archive != nil {
		report := domain.Report{
			Category: sess.Fields[FieldCategory],
			Title:    sess.Fields[FieldTitle],
			Author:   sess.Fields[FieldAuthor],
			Body:     post,
			Photos:   len(sess.Photos),
			Clips:    len(sess.Clips),
			ChatID:   chatID,
		}
		if err := c.archive.SaveReport(ctx, report); err != nil {
			c.logger.Warn("cannot archive report", "err", err)
		}
	}

	metrics.ReportsDelivered.Inc()
	c.logger.Info("report delivered",
		"user", ev.UserID,
		"target", chatID,
		"photos", len(sess.Photos),
		"clips", len(sess.Clips),
	)

	c.sessions.Clear(ev.UserID)
	c.reply(ev.ChatID, c.prompts.Sent, nil)
}

// sendAll delivers post, then photos in order, then clips in order.
// The first fault aborts the remaining sends; already-sent items are
// not rolled back.
func (c *Controller) sendAll(ctx context.Context, chatID int64, post string, sess Session) error {
	if err := c.gateway.SendPost(ctx, chatID, post); err != nil {
		return err
	}
	for _, fileID := range sess.Photos {
		if err := c.gateway.SendPhoto(ctx, chatID, fileID); err != nil {
			return err
		}
	}
	for _, fileID := range sess.Clips {
		if err := c.gateway.SendClip(ctx, chatID, fileID); err != nil {
			return err
		}
	}
	return nil
}

func faultDetail(err error) string {
	var de *domain.DeliveryError
	if errors.As(err, &de) {
		return de.Detail
	}
	return err.Error()
}

func (c *Controller) reply(chatID int64, text string, buttons [][]domain.Button) {
	c.bus.SendReply(domain.Reply{ChatID: chatID, Text: text, Buttons: buttons})
}

func categoryButtons() [][]domain.Button {
	return [][]domain.Button{{
		{Label: "Winlator", Data: "category:" + CategoryWinlator},
		{Label: "GameHub", Data: "category:" + CategoryGameHub},
	}}
}

func cancelButtons() [][]domain.Button {
	return [][]domain.Button{
		{{Label: "Cancel", Data: "cancel"}},
	}
}

func mediaButtons() [][]domain.Button {
	return [][]domain.Button{
		{{Label: "Done", Data: "media:done"}},
		{{Label: "Cancel", Data: "cancel"}},
	}
}

func confirmButtons() [][]domain.Button {
	return [][]domain.Button{
		{{Label: "Send", Data: "confirm:send"}},
		{{Label: "Start over", Data: "confirm:restart"}},
		{{Label: "Cancel", Data: "cancel"}},
	}
}
