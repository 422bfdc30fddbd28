package tracker

import (
	"context"
	"errors"
	"sync"

	"github.com/llyrli/working-mode/internal/classifier"
	"github.com/llyrli/working-mode/internal/db"
	"github.com/llyrli/working-mode/internal/ledger"
	"github.com/llyrli/working-mode/internal/models"
	"github.com/llyrli/working-mode/internal/reminder"
)

// ErrInvalidCategory rejects a manual override naming an unconfigured
// category.
var ErrInvalidCategory = errors.New("invalid category")

// Controller wires the event feed to the accrual ledger and the
// classification pipeline. Control flow per trigger: settle elapsed time into
// the previous (domain, category) bucket, resolve the new category if the
// domain changed, then move the ledger's current pointer.
type Controller struct {
	db         *db.DB
	ledger     *ledger.Ledger
	classifier *classifier.Classifier
	cache      *classifier.Cache
	reminder   *reminder.Policy

	mu        sync.Mutex
	lastURL   string
	lastTitle string
}

// New creates a controller over the given collaborators.
func New(database *db.DB, led *ledger.Ledger, cls *classifier.Classifier, cache *classifier.Cache, rem *reminder.Policy) *Controller {
	return &Controller{
		db:         database,
		ledger:     led,
		classifier: cls,
		cache:      cache,
		reminder:   rem,
	}
}

// Settings loads the current settings snapshot.
func (c *Controller) Settings() (*models.Settings, error) {
	return c.db.LoadSettings()
}

// HandleEvent reacts to one entry from the external tab/window event feed.
// Every event type triggers re-resolution of the active page.
func (c *Controller) HandleEvent(ctx context.Context, ev models.Event) (string, error) {
	c.mu.Lock()
	c.lastURL = ev.URL
	c.lastTitle = ev.Title
	c.mu.Unlock()

	return c.classify(ctx, ev.URL, ev.Title)
}

// Reclassify forces immediate re-resolution of the last-seen active page.
func (c *Controller) Reclassify(ctx context.Context) (string, error) {
	c.mu.Lock()
	url, title := c.lastURL, c.lastTitle
	c.mu.Unlock()

	return c.classify(ctx, url, title)
}

func (c *Controller) classify(ctx context.Context, url, title string) (string, error) {
	settings, err := c.Settings()
	if err != nil {
		return "", err
	}

	// Settle against the old domain first, even before classification
	// completes; elapsed time belongs to the previous page.
	domain := classifier.ExtractDomain(url)
	if err := c.ledger.SetDomain(settings, domain); err != nil {
		return "", err
	}

	if cat, ok := c.cache.Get(domain); ok {
		if err := c.ledger.ApplyCategory(settings, cat); err != nil {
			return "", err
		}
		return cat, nil
	}

	result := c.classifier.Classify(ctx, classifier.Request{URL: url, Title: title}, settings)
	c.cache.Put(domain, result.Category)

	if err := c.ledger.ApplyCategory(settings, result.Category); err != nil {
		return "", err
	}
	return result.Category, nil
}

// Tick settles elapsed time and runs the reminder guard chain. Invoked by
// the periodic scheduler.
func (c *Controller) Tick(ctx context.Context) error {
	settings, err := c.Settings()
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return nil
	}

	if err := c.ledger.Settle(settings); err != nil {
		return err
	}

	_, category, lastSwitch := c.ledger.Current()
	c.reminder.Check(ctx, settings, settings.Umbrella(category), lastSwitch)
	return nil
}

// SetManualCategory applies a user override. The name must resolve
// case-insensitively against the configured category list; otherwise nothing
// mutates.
func (c *Controller) SetManualCategory(name string) error {
	settings, err := c.Settings()
	if err != nil {
		return err
	}
	canonical, ok := settings.CanonicalCategory(name)
	if !ok {
		return ErrInvalidCategory
	}
	return c.ledger.ApplyCategory(settings, canonical)
}

// ApplySettings persists a new settings value and invalidates the domain
// cache when the category configuration changed. Reports whether the caller
// must reschedule the periodic tick.
func (c *Controller) ApplySettings(next *models.Settings) (tickChanged bool, err error) {
	prev, err := c.Settings()
	if err != nil {
		return false, err
	}

	next.Normalize()
	if err := c.db.SaveSettings(next); err != nil {
		return false, err
	}

	if categoriesChanged(prev.CategoriesConfig, next.CategoriesConfig) {
		c.cache.Reset()
	}
	tickChanged = prev.IntervalMinutes != next.IntervalMinutes ||
		prev.Enabled != next.Enabled ||
		prev.FocusPolicy.Enabled != next.FocusPolicy.Enabled
	return tickChanged, nil
}

// ClearAllData deletes every persisted daily-statistics and segment-log
// record and resets the accrual clock so stale elapsed time is not
// re-credited. The current domain/category pointer is untouched.
func (c *Controller) ClearAllData() (int, error) {
	cleared, err := c.db.ClearStats()
	if err != nil {
		return 0, err
	}
	c.ledger.ResetAccrualClock()
	return cleared, nil
}

// RestModalAction handles a user action on the rest prompt. For disable the
// policy is persisted off; stopping the tick is the caller's job.
func (c *Controller) RestModalAction(action string) error {
	switch action {
	case models.ActionCloseOnce, models.ActionSnooze30:
		c.reminder.Apply(action)
		return nil
	case models.ActionDisable:
		settings, err := c.Settings()
		if err != nil {
			return err
		}
		settings.FocusPolicy.Enabled = false
		return c.db.SaveSettings(settings)
	default:
		return errors.New("unknown action")
	}
}

// Ledger exposes the read-only query surface.
func (c *Controller) Ledger() *ledger.Ledger {
	return c.ledger
}

func categoriesChanged(a, b []models.CategoryConfig) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}
