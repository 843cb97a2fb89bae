package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"reportbot/internal/domain"
)

// recordingBus captures replies sent by the controller.
type recordingBus struct {
	mu      sync.Mutex
	replies []domain.Reply
}

func (b *recordingBus) Publish(domain.Event)          {}
func (b *recordingBus) Subscribe() <-chan domain.Event { return nil }
func (b *recordingBus) OnReply(func(domain.Reply))    {}

func (b *recordingBus) SendReply(r domain.Reply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, r)
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.replies)
}

func (b *recordingBus) last() domain.Reply {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.replies) == 0 {
		return domain.Reply{}
	}
	return b.replies[len(b.replies)-1]
}

// recordingGateway captures delivery calls and can inject a fault at a
// given photo index (1-based).
type recordingGateway struct {
	posts       []string
	photos      []string
	clips       []string
	failPhotoAt int
}

func (g *recordingGateway) SendPost(ctx context.Context, chatID int64, text string) error {
	g.posts = append(g.posts, text)
	return nil
}

func (g *recordingGateway) SendPhoto(ctx context.Context, chatID int64, fileID string) error {
	if g.failPhotoAt > 0 && len(g.photos)+1 == g.failPhotoAt {
		return &domain.DeliveryError{Recoverable: true, Detail: "Bad Request: wrong file identifier"}
	}
	g.photos = append(g.photos, fileID)
	return nil
}

func (g *recordingGateway) SendClip(ctx context.Context, chatID int64, fileID string) error {
	g.clips = append(g.clips, fileID)
	return nil
}

type staticTarget struct {
	id int64
	ok bool
}

func (t staticTarget) Resolve(ctx context.Context) (int64, bool, error) {
	return t.id, t.ok, nil
}

type recordingArchive struct {
	reports []domain.Report
}

func (a *recordingArchive) SaveReport(ctx context.Context, r domain.Report) error {
	a.reports = append(a.reports, r)
	return nil
}

func (a *recordingArchive) RecentReports(ctx context.Context, limit int) ([]domain.Report, error) {
	return a.reports, nil
}

func newTestController(gw domain.DeliveryGateway, target domain.TargetResolver) (*Controller, *Store, *recordingBus) {
	sessions := NewStore()
	b := &recordingBus{}
	c := NewController(ControllerConfig{
		Sessions: sessions,
		Prompts:  DefaultPrompts(),
		Gateway:  gw,
		Target:   target,
		Bus:      b,
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	return c, sessions, b
}

const testUser = int64(42)

func text(s string) domain.Event {
	return domain.Event{Kind: domain.EventText, UserID: testUser, ChatID: testUser, Text: s}
}

func choice(data string) domain.Event {
	return domain.Event{Kind: domain.EventChoice, UserID: testUser, ChatID: testUser, Data: data}
}

func photo(fileID string) domain.Event {
	return domain.Event{Kind: domain.EventPhoto, UserID: testUser, ChatID: testUser, FileID: fileID}
}

func clip(fileID string) domain.Event {
	return domain.Event{Kind: domain.EventClip, UserID: testUser, ChatID: testUser, FileID: fileID}
}

var startEv = domain.Event{Kind: domain.EventStart, UserID: testUser, ChatID: testUser}
var cancelEv = domain.Event{Kind: domain.EventCancel, UserID: testUser, ChatID: testUser}

// fillForm drives the wizard from start through the author answer.
func fillForm(t *testing.T, c *Controller) {
	t.Helper()
	ctx := context.Background()
	c.HandleEvent(ctx, startEv)
	c.HandleEvent(ctx, choice("category:winlator"))
	c.HandleEvent(ctx, text("Foo"))   // title
	c.HandleEvent(ctx, text("Bar"))   // device
	c.HandleEvent(ctx, text("1.0"))   // version
	c.HandleEvent(ctx, text("Low"))   // config
	c.HandleEvent(ctx, text("30fps")) // performance
	c.HandleEvent(ctx, text("нет"))   // issues -> empty
	c.HandleEvent(ctx, text("none"))  // extra -> empty
	c.HandleEvent(ctx, text("@x"))    // author
}

func TestController_SendWithoutTarget(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, b := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	fillForm(t, c)
	c.HandleEvent(ctx, choice("media:done"))
	c.HandleEvent(ctx, choice("confirm:send"))

	if got := b.last().Text; got != DefaultPrompts().NoTarget {
		t.Fatalf("expected missing-target message, got %q", got)
	}
	if phase := sessions.Get(testUser).Phase; phase != PhaseConfirm {
		t.Fatalf("session should stay in confirm, got %v", phase)
	}
	if len(gw.posts) != 0 {
		t.Fatalf("nothing should have been delivered, got %d posts", len(gw.posts))
	}
}

func TestController_SendDeliversAndClears(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, b := newTestController(gw, staticTarget{id: -100, ok: true})
	ctx := context.Background()

	fillForm(t, c)
	c.HandleEvent(ctx, choice("media:done"))
	c.HandleEvent(ctx, choice("confirm:send"))

	if len(gw.posts) != 1 {
		t.Fatalf("expected exactly one post send, got %d", len(gw.posts))
	}
	post := gw.posts[0]
	if strings.Contains(post, "Issues:") || strings.Contains(post, "Notes:") {
		t.Fatalf("negative answers must be omitted from the post:\n%s", post)
	}
	if !strings.Contains(post, "<b>Tested by:</b> @x") {
		t.Fatalf("author line missing from post:\n%s", post)
	}
	if len(gw.photos) != 0 || len(gw.clips) != 0 {
		t.Fatalf("no media was accumulated, got %d photos %d clips", len(gw.photos), len(gw.clips))
	}
	if phase := sessions.Get(testUser).Phase; phase != PhaseNone {
		t.Fatalf("session should be cleared after delivery, got %v", phase)
	}
	if got := b.last().Text; got != DefaultPrompts().Sent {
		t.Fatalf("expected completion message, got %q", got)
	}
}

func TestController_DeliveryArchivesReport(t *testing.T) {
	gw := &recordingGateway{}
	arch := &recordingArchive{}
	sessions := NewStore()
	b := &recordingBus{}
	c := NewController(ControllerConfig{
		Sessions: sessions,
		Prompts:  DefaultPrompts(),
		Gateway:  gw,
		Target:   staticTarget{id: -100, ok: true},
		Archive:  arch,
		Bus:      b,
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	ctx := context.Background()

	fillForm(t, c)
	c.HandleEvent(ctx, photo("p1"))
	c.HandleEvent(ctx, choice("media:done"))
	c.HandleEvent(ctx, choice("confirm:send"))

	if len(arch.reports) != 1 {
		t.Fatalf("expected one archived report, got %d", len(arch.reports))
	}
	r := arch.reports[0]
	if r.Category != CategoryWinlator || r.Title != "Foo" || r.Photos != 1 || r.Clips != 0 {
		t.Fatalf("archived report mismatch: %+v", r)
	}
}

func TestController_MediaAccumulationOrder(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, b := newTestController(gw, staticTarget{id: -100, ok: true})
	ctx := context.Background()

	fillForm(t, c)
	replies := b.count()

	c.HandleEvent(ctx, photo("A"))
	c.HandleEvent(ctx, photo("B"))
	c.HandleEvent(ctx, clip("C"))

	sess := sessions.Get(testUser)
	if len(sess.Photos) != 2 || sess.Photos[0] != "A" || sess.Photos[1] != "B" {
		t.Fatalf("photos not accumulated in order: %v", sess.Photos)
	}
	if len(sess.Clips) != 1 || sess.Clips[0] != "C" {
		t.Fatalf("clips not accumulated: %v", sess.Clips)
	}
	if b.count() != replies {
		t.Fatalf("media accumulation must be silent, got %d extra replies", b.count()-replies)
	}
}

func TestController_TextDuringMediaIgnored(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, b := newTestController(gw, staticTarget{id: -100, ok: true})
	ctx := context.Background()

	fillForm(t, c)
	c.HandleEvent(ctx, photo("A"))
	replies := b.count()

	c.HandleEvent(ctx, text("are you still there?"))

	sess := sessions.Get(testUser)
	if sess.Phase != PhaseMedia {
		t.Fatalf("phase should remain media, got %v", sess.Phase)
	}
	if len(sess.Photos) != 1 || sess.Photos[0] != "A" {
		t.Fatalf("accumulated photo must be retained: %v", sess.Photos)
	}
	if b.count() != replies {
		t.Fatalf("ignored event must produce no reply")
	}
}

func TestController_PartialDeliveryFault(t *testing.T) {
	gw := &recordingGateway{failPhotoAt: 2}
	c, sessions, b := newTestController(gw, staticTarget{id: -100, ok: true})
	ctx := context.Background()

	fillForm(t, c)
	c.HandleEvent(ctx, photo("p1"))
	c.HandleEvent(ctx, photo("p2"))
	c.HandleEvent(ctx, photo("p3"))
	c.HandleEvent(ctx, clip("v1"))
	c.HandleEvent(ctx, choice("media:done"))
	c.HandleEvent(ctx, choice("confirm:send"))

	if len(gw.posts) != 1 {
		t.Fatalf("post should have been sent before the fault, got %d", len(gw.posts))
	}
	if len(gw.photos) != 1 || gw.photos[0] != "p1" {
		t.Fatalf("only the first photo should have been sent, got %v", gw.photos)
	}
	if len(gw.clips) != 0 {
		t.Fatalf("no clips should be sent after the fault, got %v", gw.clips)
	}
	if !strings.Contains(b.last().Text, "wrong file identifier") {
		t.Fatalf("fault detail should reach the user, got %q", b.last().Text)
	}

	sess := sessions.Get(testUser)
	if sess.Phase != PhaseConfirm {
		t.Fatalf("session should stay in confirm for retry, got %v", sess.Phase)
	}
	if len(sess.Photos) != 3 || len(sess.Clips) != 1 {
		t.Fatalf("media must stay intact for retry: %d photos %d clips", len(sess.Photos), len(sess.Clips))
	}
}

func TestController_CancelFromEveryPhase(t *testing.T) {
	ctx := context.Background()
	phases := []Phase{
		PhaseCategory, PhaseTitle, PhaseDevice, PhaseVersion, PhaseConfig,
		PhasePerformance, PhaseIssues, PhaseExtra, PhaseAuthor, PhaseMedia, PhaseConfirm,
	}
	for _, phase := range phases {
		gw := &recordingGateway{}
		c, sessions, b := newTestController(gw, staticTarget{ok: false})

		sessions.SetField(testUser, FieldTitle, "Foo")
		sessions.AddPhoto(testUser, "p1")
		sessions.SetPhase(testUser, phase)

		c.HandleEvent(ctx, cancelEv)

		sess := sessions.Get(testUser)
		if sess.Phase != PhaseNone {
			t.Fatalf("cancel from %v: phase = %v, want none", phase, sess.Phase)
		}
		if len(sess.Fields) != 0 || len(sess.Photos) != 0 {
			t.Fatalf("cancel from %v: session not cleared: %+v", phase, sess)
		}
		if b.last().Text != DefaultPrompts().Cancelled {
			t.Fatalf("cancel from %v: expected cancellation notice, got %q", phase, b.last().Text)
		}
	}
}

func TestController_RestartFromConfirm(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, b := newTestController(gw, staticTarget{id: -100, ok: true})
	ctx := context.Background()

	fillForm(t, c)
	c.HandleEvent(ctx, photo("p1"))
	c.HandleEvent(ctx, choice("media:done"))
	c.HandleEvent(ctx, choice("confirm:restart"))

	sess := sessions.Get(testUser)
	if sess.Phase != PhaseCategory {
		t.Fatalf("restart should re-enter category, got %v", sess.Phase)
	}
	if len(sess.Fields) != 0 || len(sess.Photos) != 0 {
		t.Fatalf("restart must discard fields and media: %+v", sess)
	}
	if b.last().Text != DefaultPrompts().Category {
		t.Fatalf("restart should re-emit category prompt, got %q", b.last().Text)
	}
}

func TestController_InvalidCategoryIgnored(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, b := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	c.HandleEvent(ctx, startEv)
	replies := b.count()

	c.HandleEvent(ctx, choice("category:steamdeck"))

	sess := sessions.Get(testUser)
	if sess.Phase != PhaseCategory {
		t.Fatalf("invalid category must not advance, got %v", sess.Phase)
	}
	if _, ok := sess.Fields[FieldCategory]; ok {
		t.Fatalf("invalid category must not be stored")
	}
	if b.count() != replies {
		t.Fatalf("invalid category must produce no reply")
	}
}

func TestController_OutOfPhaseEventIgnored(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, b := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	c.HandleEvent(ctx, startEv)
	c.HandleEvent(ctx, choice("category:gamehub"))
	replies := b.count()

	// A photo during the title phase matches no transition.
	c.HandleEvent(ctx, photo("p1"))

	sess := sessions.Get(testUser)
	if sess.Phase != PhaseTitle {
		t.Fatalf("phase should remain title, got %v", sess.Phase)
	}
	if len(sess.Photos) != 0 {
		t.Fatalf("photo must not be accumulated outside media phase")
	}
	if b.count() != replies {
		t.Fatalf("ignored event must produce no reply")
	}
}

func TestController_StartSupersedesSession(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, _ := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	fillForm(t, c)
	c.HandleEvent(ctx, startEv)

	sess := sessions.Get(testUser)
	if sess.Phase != PhaseCategory {
		t.Fatalf("start should re-enter category, got %v", sess.Phase)
	}
	if len(sess.Fields) != 0 {
		t.Fatalf("start must discard prior answers: %v", sess.Fields)
	}
}

func TestController_EmptyTextStored(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, _ := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	c.HandleEvent(ctx, startEv)
	c.HandleEvent(ctx, choice("category:winlator"))
	c.HandleEvent(ctx, text(""))

	sess := sessions.Get(testUser)
	if sess.Phase != PhaseDevice {
		t.Fatalf("empty text should still advance, got %v", sess.Phase)
	}
	if v, ok := sess.Fields[FieldTitle]; !ok || v != "" {
		t.Fatalf("empty text should be stored as empty string, got %q (ok=%v)", v, ok)
	}
}

func TestController_VersionPromptNamesProduct(t *testing.T) {
	gw := &recordingGateway{}
	c, _, b := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	c.HandleEvent(ctx, startEv)
	c.HandleEvent(ctx, choice("category:gamehub"))
	c.HandleEvent(ctx, text("Foo")) // title
	c.HandleEvent(ctx, text("Bar")) // device -> version prompt

	if !strings.Contains(b.last().Text, "GameHub") {
		t.Fatalf("version prompt should name the product, got %q", b.last().Text)
	}
}

func TestController_PreviewContainsRenderedPost(t *testing.T) {
	gw := &recordingGateway{}
	c, _, b := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	fillForm(t, c)
	c.HandleEvent(ctx, choice("media:done"))

	preview := b.last()
	if !strings.Contains(preview.Text, "<b>Game:</b> Foo") {
		t.Fatalf("preview should contain the rendered post, got %q", preview.Text)
	}
	if len(preview.Buttons) != 3 {
		t.Fatalf("preview should offer send/restart/cancel, got %d rows", len(preview.Buttons))
	}
}

func TestController_PerUserQueueOrder(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, _ := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	// Feed the full form through the async queue; in-order processing
	// is required to land in the media phase.
	events := []domain.Event{
		startEv,
		choice("category:winlator"),
		text("Foo"), text("Bar"), text("1.0"), text("Low"),
		text("30fps"), text("no"), text("no"), text("@x"),
		photo("p1"),
	}
	for _, ev := range events {
		c.enqueue(ctx, ev)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		sess := sessions.Get(testUser)
		if sess.Phase == PhaseMedia && len(sess.Photos) == 1 {
			if sess.Fields[FieldTitle] != "Foo" {
				t.Fatalf("answers landed out of order: %v", sess.Fields)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue never drained; phase=%v photos=%d", sess.Phase, len(sess.Photos))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestController_IndependentUsers(t *testing.T) {
	gw := &recordingGateway{}
	c, sessions, _ := newTestController(gw, staticTarget{ok: false})
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		c.HandleEvent(ctx, domain.Event{Kind: domain.EventStart, UserID: i, ChatID: i})
		c.HandleEvent(ctx, domain.Event{Kind: domain.EventChoice, UserID: i, ChatID: i, Data: "category:winlator"})
		c.HandleEvent(ctx, domain.Event{Kind: domain.EventText, UserID: i, ChatID: i, Text: fmt.Sprintf("game-%d", i)})
	}

	for i := int64(1); i <= 3; i++ {
		sess := sessions.Get(i)
		if sess.Fields[FieldTitle] != fmt.Sprintf("game-%d", i) {
			t.Fatalf("user %d sees someone else's answer: %q", i, sess.Fields[FieldTitle])
		}
	}
}
