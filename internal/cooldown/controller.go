package cooldown

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spendguard/internal/clock"
	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/nudge"
	"github.com/Veraticus/spendguard/internal/savings"
	"github.com/Veraticus/spendguard/internal/service"
)

// DefaultEstimate is the amount credited to savings when an abandoned
// purchase had no readable price.
const DefaultEstimate = 50.0

const genericHeadline = "Before you continue"

// Nudger supplies reflection text. Nudge must never fail.
type Nudger interface {
	Nudge(ctx context.Context, pc model.PurchaseContext) string
	Reflection() string
}

// WarningSource inspects the page for reasons to be careful.
type WarningSource interface {
	Warnings(doc dom.Document) []string
}

// InsightsSource reports this month's spending for budget warnings.
type InsightsSource interface {
	Insights(ctx context.Context) (model.SpendingInsights, error)
}

// Config wires a Controller. Records, Settings, Savings and Clock are
// required.
type Config struct {
	Records  service.PurchaseRecorder
	Settings service.SettingsSource
	Savings  service.SavingsRecorder
	Insights InsightsSource
	Nudges   Nudger
	Scam     WarningSource
	Overlay  Overlay
	Clock    clock.Clock

	// Post runs fn on the goroutine that owns the controller. Timer and
	// overlay callbacks only ever reach the controller through Post.
	Post func(fn func())

	// OnStart and OnResolve observe session transitions. OnResolve with
	// Proceeded is where the caller replays the original action.
	OnStart   func(s *Session)
	OnResolve func(s *Session, outcome State)

	DefaultEstimate float64
}

// Session is one cooldown. Fields are read-only for callers.
type Session struct {
	StartedAt time.Time
	Element   dom.Element
	Page      dom.Page
	ctx       context.Context
	timer     clock.Timer
	cancel    context.CancelFunc
	ID        string
	PageURL   string
	view      View
	Context   model.PurchaseContext
	Settings  model.Settings
	Elapsed   int
	state     State
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// View returns the last rendered view.
func (s *Session) View() View { return s.view }

// Controller owns at most one active session. All methods must be called
// from the goroutine behind Config.Post.
type Controller struct {
	cfg    Config
	active *Session
}

// New returns a Controller. Optional collaborators default to no-ops.
func New(cfg Config) *Controller {
	if cfg.Overlay == nil {
		cfg.Overlay = nopOverlay{}
	}
	if cfg.Nudges == nil {
		cfg.Nudges = nudge.NewSafe(nil, 0)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Post == nil {
		cfg.Post = func(fn func()) { fn() }
	}
	if cfg.DefaultEstimate <= 0 {
		cfg.DefaultEstimate = DefaultEstimate
	}
	return &Controller{cfg: cfg}
}

// Active returns the running session, if any.
func (c *Controller) Active() (*Session, bool) {
	return c.active, c.active != nil
}

// Start begins a cooldown for el. It returns false without side effects
// when a session is already running.
func (c *Controller) Start(ctx context.Context, page dom.Page, el dom.Element, pc model.PurchaseContext) (*Session, bool) {
	if c.active != nil {
		slog.Debug("Cooldown already running, swallowing activation", "session", c.active.ID)
		return nil, false
	}

	settings := c.cfg.Settings.Settings(ctx)
	total := settings.CooldownSeconds
	if total <= 0 {
		total = model.DefaultCooldownSeconds
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:        uuid.NewString(),
		Element:   el,
		Page:      page,
		PageURL:   page.URL(),
		Context:   pc,
		Settings:  settings,
		StartedAt: c.cfg.Clock.Now(),
		state:     Counting,
		ctx:       ctx,
		cancel:    cancel,
	}
	c.active = s

	c.record(ctx, s, false, model.ReasonIntercepted)
	if _, err := c.cfg.Records.IncrementIntercepts(ctx); err != nil {
		slog.Warn("Failed to increment intercept counter", "error", err)
	}

	s.view = View{
		SessionID: s.ID,
		State:     Counting,
		Headline:  headline(pc),
		Product:   pc.ProductName,
		Price:     priceLabel(pc),
		Platform:  pc.Platform,
		Message:   c.cfg.Nudges.Reflection(),
		Warnings:  c.warnings(ctx, page, pc, settings),
		Total:     total,
		Remaining: total,
		SkipAfter: SkipDelay(total),
	}

	actions := Actions{
		Proceed: func() { c.cfg.Post(func() { c.requestProceed(s) }) },
		Abandon: func() { c.cfg.Post(func() { c.abandon(s) }) },
	}
	if err := c.cfg.Overlay.Show(s.view, actions); err != nil {
		slog.Warn("Failed to show cooldown overlay", "error", err)
	}
	if err := page.SetInteractionLocked(true); err != nil {
		slog.Warn("Failed to lock page interaction", "error", err)
	}

	if settings.EnableNudges {
		go func() {
			text := c.cfg.Nudges.Nudge(sctx, pc)
			c.cfg.Post(func() { c.applyNudge(s, text) })
		}()
	}

	c.schedule(s)
	if c.cfg.OnStart != nil {
		c.cfg.OnStart(s)
	}

	slog.Info("Cooldown started",
		"session", s.ID,
		"seconds", total,
		"product", pc.ProductName,
		"price", pc.PriceText)
	return s, true
}

// Proceed resolves the active session in favor of the purchase. It is
// ignored until skipping has unlocked.
func (c *Controller) Proceed() bool {
	if c.active == nil {
		return false
	}
	return c.requestProceed(c.active)
}

// Abandon drops the original action and credits the savings ledger.
func (c *Controller) Abandon() bool {
	if c.active == nil {
		return false
	}
	return c.abandon(c.active)
}

// Dismiss ends the active session without recording an outcome. It is used
// when the page the session belongs to goes away.
func (c *Controller) Dismiss() {
	s := c.active
	if s == nil {
		return
	}
	c.finish(s, Dismissed)
	slog.Info("Cooldown dismissed", "session", s.ID)
	if c.cfg.OnResolve != nil {
		c.cfg.OnResolve(s, Dismissed)
	}
}

func (c *Controller) schedule(s *Session) {
	s.timer = c.cfg.Clock.AfterFunc(time.Second, func() {
		c.cfg.Post(func() { c.tick(s) })
	})
}

func (c *Controller) tick(s *Session) {
	if c.active != s || s.state.Resolved() {
		return
	}

	s.Elapsed = int(c.cfg.Clock.Now().Sub(s.StartedAt) / time.Second)
	if s.Elapsed >= s.view.Total {
		c.proceed(s, model.ReasonProceeded)
		return
	}

	if s.state == Counting && s.Elapsed >= s.view.SkipAfter {
		s.state = SkipUnlocked
		s.view.SkipAvailable = true
		slog.Debug("Cooldown skip unlocked", "session", s.ID, "elapsed", s.Elapsed)
	}
	s.view.State = s.state
	s.view.Remaining = s.view.Total - s.Elapsed
	c.cfg.Overlay.Update(s.view)

	c.schedule(s)
}

func (c *Controller) requestProceed(s *Session) bool {
	if c.active != s || s.state != SkipUnlocked {
		slog.Debug("Ignoring proceed request", "session", s.ID, "state", s.state)
		return false
	}
	c.proceed(s, model.ReasonSkipped)
	return true
}

func (c *Controller) proceed(s *Session, reason string) {
	c.finish(s, Proceeded)
	c.record(s.ctx, s, true, reason)

	slog.Info("Cooldown resolved", "session", s.ID, "outcome", Proceeded, "reason", reason, "elapsed", s.Elapsed)
	if c.cfg.OnResolve != nil {
		c.cfg.OnResolve(s, Proceeded)
	}
}

func (c *Controller) abandon(s *Session) bool {
	if c.active != s || s.state.Resolved() {
		return false
	}
	c.finish(s, Abandoned)

	pc := s.Context
	amount := pc.Amount(c.cfg.DefaultEstimate)
	ledger, err := c.cfg.Savings.RecordAbandon(s.ctx, amount, pc.Category, pc.ProductName)
	fb := savings.NewFeedback(amount, pc, ledger)
	if err != nil {
		slog.Warn("Failed to record savings", "error", err)
		fb.Message = ""
	}
	c.cfg.Overlay.Feedback(fb)

	slog.Info("Cooldown resolved", "session", s.ID, "outcome", Abandoned, "amount", amount, "elapsed", s.Elapsed)
	if c.cfg.OnResolve != nil {
		c.cfg.OnResolve(s, Abandoned)
	}
	return true
}

// finish stops the session's timer and nudge request, tears down the
// overlay and restores page interaction.
func (c *Controller) finish(s *Session, outcome State) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	s.state = outcome
	s.view.State = outcome
	c.active = nil

	c.cfg.Overlay.Hide()
	if err := s.Page.SetInteractionLocked(false); err != nil {
		slog.Warn("Failed to unlock page interaction", "error", err)
	}
}

func (c *Controller) applyNudge(s *Session, text string) {
	if c.active != s || s.state.Resolved() || text == "" {
		return
	}
	s.view.Message = text
	c.cfg.Overlay.Update(s.view)
}

func (c *Controller) record(ctx context.Context, s *Session, proceeded bool, reason string) {
	entry := model.NewInterceptionEntry(s.PageURL, s.Context, c.cfg.Clock.Now(), proceeded, reason)
	if err := c.cfg.Records.AddPurchase(ctx, entry); err != nil {
		slog.Warn("Failed to record purchase", "proceeded", proceeded, "error", err)
	}
}

func (c *Controller) warnings(ctx context.Context, page dom.Page, pc model.PurchaseContext, settings model.Settings) []string {
	var out []string
	if settings.EnableScamDetection && c.cfg.Scam != nil {
		out = append(out, c.cfg.Scam.Warnings(page)...)
	}
	if c.cfg.Insights != nil {
		if _, ok := settings.Budget(pc.Category); ok {
			insights, err := c.cfg.Insights.Insights(ctx)
			if err != nil {
				slog.Warn("Budget check unavailable", "error", err)
			} else if w := budgetWarning(insights, settings, pc); w != "" {
				out = append(out, w)
			}
		}
	}
	return out
}

func budgetWarning(insights model.SpendingInsights, settings model.Settings, pc model.PurchaseContext) string {
	budget, ok := settings.Budget(pc.Category)
	if !ok || budget <= 0 {
		return ""
	}

	spent := 0.0
	for _, c := range insights.Categories {
		if strings.EqualFold(c.Category, pc.Category) {
			spent = c.Spent
			break
		}
	}

	switch {
	case spent >= budget:
		return fmt.Sprintf("You've already spent %s of your %s %s budget this month.",
			savings.FormatAmount(spent, pc.Currency), savings.FormatAmount(budget, pc.Currency), pc.Category)
	case pc.HasPrice() && spent+*pc.Price > budget:
		return fmt.Sprintf("This would take you over your %s budget for the month (%s left of %s).",
			pc.Category, savings.FormatAmount(budget-spent, pc.Currency), savings.FormatAmount(budget, pc.Currency))
	}
	return ""
}

func headline(pc model.PurchaseContext) string {
	if pc.ProductName == "" {
		return genericHeadline
	}
	return "Before you buy " + pc.ProductName
}

func priceLabel(pc model.PurchaseContext) string {
	if pc.PriceText != "" {
		return pc.PriceText
	}
	if pc.HasPrice() {
		return savings.FormatAmount(*pc.Price, pc.Currency)
	}
	return ""
}
