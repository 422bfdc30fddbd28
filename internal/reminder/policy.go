package reminder

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/llyrli/working-mode/internal/models"
	"github.com/llyrli/working-mode/internal/timekey"
)

// minThreshold is the floor on the continuous-rest trigger interval.
const minThreshold = 30 * time.Second

// Prompt is one rest reminder surfaced to the presentation layer.
type Prompt struct {
	ID               string `json:"id"`
	MinutesOnRest    int    `json:"minutes_on_rest"`
	ThresholdMinutes int    `json:"threshold_minutes"`
}

// Notifier delivers a prompt. Delivery failure is reported so the policy can
// fall through to the next notifier in the chain.
type Notifier interface {
	Notify(ctx context.Context, p Prompt) error
}

// Policy is the rate-limited rest reminder, a state machine keyed by local
// day. Its counters are in-memory only: a restart mid-day resets them, an
// accepted approximation since daily caps restart at the day boundary anyway.
type Policy struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	notifiers []Notifier

	lastDayKey         string
	lastReminderTs     time.Time
	reminderCountToday int
	muteUntilTs        time.Time
}

// New creates a policy with zero-valued state. Notifiers are tried in order;
// the first successful delivery wins.
func New(clock clockwork.Clock, notifiers ...Notifier) *Policy {
	return &Policy{clock: clock, notifiers: notifiers}
}

// Check runs the guard chain on a periodic tick and fires a prompt when the
// ledger has been continuously in the rest umbrella for long enough. All
// guards must pass; any failure is a silent no-op.
func (p *Policy) Check(ctx context.Context, settings *models.Settings, umbrella string, lastSwitch time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fp := settings.FocusPolicy
	if !fp.Enabled {
		return
	}

	now := p.clock.Now()
	dk := timekey.DayKey(settings.TimeZone, now)
	if p.lastDayKey != dk {
		p.lastDayKey = dk
		p.lastReminderTs = time.Time{}
		p.reminderCountToday = 0
		p.muteUntilTs = time.Time{}
	}

	dailyMax := fp.DailyMax
	if dailyMax <= 0 {
		dailyMax = 8
	}
	if p.reminderCountToday >= dailyMax {
		return
	}
	if umbrella != models.UmbrellaRest {
		return
	}
	if !p.muteUntilTs.IsZero() && now.Before(p.muteUntilTs) {
		return
	}

	intervalMin := settings.IntervalMinutes
	if intervalMin < 1 {
		intervalMin = 5
	}
	threshold := time.Duration(intervalMin) * time.Minute
	if threshold < minThreshold {
		threshold = minThreshold
	}
	// Reminders cannot repeat faster than the trigger interval.
	cooldown := threshold

	if !p.lastReminderTs.IsZero() && now.Sub(p.lastReminderTs) < cooldown {
		return
	}

	sinceSwitch := now.Sub(lastSwitch)
	if sinceSwitch < 0 {
		sinceSwitch = 0
	}
	if sinceSwitch < threshold {
		return
	}

	p.deliver(ctx, Prompt{
		ID:               uuid.NewString(),
		MinutesOnRest:    int(sinceSwitch / time.Minute),
		ThresholdMinutes: intervalMin,
	})
	p.lastReminderTs = now
	p.reminderCountToday++
}

// deliver walks the notifier chain; all failures are swallowed after logging.
func (p *Policy) deliver(ctx context.Context, prompt Prompt) {
	for _, n := range p.notifiers {
		if err := n.Notify(ctx, prompt); err != nil {
			log.Printf("reminder delivery failed: %v", err)
			continue
		}
		return
	}
}

// Apply handles a user action on the rest prompt. The disable action only
// stamps the dismissal here; persisting the policy off and stopping the tick
// is the caller's job.
func (p *Policy) Apply(action string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	switch action {
	case models.ActionCloseOnce:
		p.lastReminderTs = now
	case models.ActionSnooze30:
		p.muteUntilTs = now.Add(30 * time.Minute)
		p.lastReminderTs = now
	}
}

// CountToday reports how many reminders fired in the current local day.
func (p *Policy) CountToday() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reminderCountToday
}
