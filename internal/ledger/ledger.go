package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/llyrli/working-mode/internal/db"
	"github.com/llyrli/working-mode/internal/models"
	"github.com/llyrli/working-mode/internal/timekey"
)

// Ledger is the accrual state machine. It tracks exactly one current
// (domain, category) pair plus two clocks: lastAccrualTs (last settlement
// boundary) and lastSwitchTs (last category-change boundary). Every mutation
// runs under one mutex, so triggers arriving near-simultaneously serialize
// instead of interleaving their read-modify-write of the same storage key.
type Ledger struct {
	mu    sync.Mutex
	db    *db.DB
	clock clockwork.Clock

	currentDomain   string
	currentCategory string
	lastSwitchTs    time.Time
	lastAccrualTs   time.Time
}

// New creates a ledger with zero-valued session state: unknown domain,
// "other" category, both clocks at now.
func New(database *db.DB, clock clockwork.Clock) *Ledger {
	now := clock.Now()
	return &Ledger{
		db:              database,
		clock:           clock,
		currentDomain:   "unknown",
		currentCategory: models.CategoryOther,
		lastSwitchTs:    now,
		lastAccrualTs:   now,
	}
}

// Settle credits all wall-clock time elapsed since the last settlement to the
// current (domain, category) pair and persists it. Idempotent when no whole
// second has elapsed; a clock that moved backward settles zero seconds, never
// negative.
func (l *Ledger) Settle(settings *models.Settings) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settleLocked(settings)
}

func (l *Ledger) settleLocked(settings *models.Settings) error {
	now := l.clock.Now()
	delta := int64(now.Sub(l.lastAccrualTs) / time.Second)
	if delta < 0 {
		delta = 0
	}
	l.lastAccrualTs = now
	if delta == 0 {
		return nil
	}

	dayKey := timekey.DayKey(settings.TimeZone, now)
	stats, err := l.db.LoadDailyStats(dayKey)
	if err != nil {
		return fmt.Errorf("loading day %s: %w", dayKey, err)
	}

	fine := l.currentCategory
	if fine == "" {
		fine = models.CategoryOther
	}
	umb := settings.Umbrella(fine)

	stats.TotalsUmbrella[umb] += delta
	stats.TotalsFine[fine] += delta

	ds := stats.ByDomain[l.currentDomain]
	if ds == nil {
		ds = &models.DomainStat{}
		stats.ByDomain[l.currentDomain] = ds
	}
	ds.Category = fine
	ds.Umbrella = umb
	ds.Seconds += delta

	if err := l.db.SaveDailyStats(dayKey, stats); err != nil {
		return fmt.Errorf("saving day %s: %w", dayKey, err)
	}

	seg := models.Segment{
		ID:       uuid.NewString(),
		TS:       now.UnixMilli(),
		Domain:   l.currentDomain,
		Category: fine,
		Umbrella: umb,
		Seconds:  delta,
	}
	if err := l.db.AppendSegment(dayKey, seg); err != nil {
		return fmt.Errorf("appending segment: %w", err)
	}

	if err := l.db.RegisterDay(dayKey); err != nil {
		return fmt.Errorf("registering day: %w", err)
	}
	return nil
}

// ApplyCategory switches the current fine category. Settlement happens FIRST,
// crediting all elapsed time to the old category, then the pointer and both
// clocks move. No time is double-counted across the boundary.
func (l *Ledger) ApplyCategory(settings *models.Settings, fine string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fine == l.currentCategory {
		return nil
	}
	if err := l.settleLocked(settings); err != nil {
		return err
	}
	now := l.clock.Now()
	l.currentCategory = fine
	l.lastSwitchTs = now
	l.lastAccrualTs = now
	return nil
}

// SetDomain records an active-domain change. Elapsed time is settled
// immediately against the old domain under the still-current category; the
// category update follows once classification resolves.
func (l *Ledger) SetDomain(settings *models.Settings, domain string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if domain == "" || domain == l.currentDomain {
		return nil
	}
	if err := l.settleLocked(settings); err != nil {
		return err
	}
	l.currentDomain = domain
	return nil
}

// ResetAccrualClock moves the settlement boundary to now without crediting
// anything. Used after a bulk clear so stale elapsed time is not re-credited.
func (l *Ledger) ResetAccrualClock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastAccrualTs = l.clock.Now()
}

// Current returns the live session pointer.
func (l *Ledger) Current() (domain, category string, lastSwitch time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentDomain, l.currentCategory, l.lastSwitchTs
}

// Snapshot is the today view: the day's aggregate plus the live pointer.
type Snapshot struct {
	Stats         *models.DailyStats
	Category      string
	Umbrella      string
	CurrentDomain string
	LastSwitchTs  time.Time
}

// TodaySnapshot returns today's aggregate record and the live state.
func (l *Ledger) TodaySnapshot(settings *models.Settings) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dayKey := timekey.DayKey(settings.TimeZone, l.clock.Now())
	stats, err := l.db.LoadDailyStats(dayKey)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Stats:         stats,
		Category:      l.currentCategory,
		Umbrella:      settings.Umbrella(l.currentCategory),
		CurrentDomain: l.currentDomain,
		LastSwitchTs:  l.lastSwitchTs,
	}, nil
}

// rangeDays maps a range token to the trailing number of day logs to read.
// 7d is the default for unknown tokens.
func rangeDays(rng string) int {
	switch rng {
	case "1h", "1d":
		return 1
	case "1mo":
		return 30
	case "1y":
		return 365
	default:
		return 7
	}
}

// segmentsInRange collects the segment logs for the trailing days implied by
// the range, filters sub-day ranges by timestamp, and sorts ascending.
func (l *Ledger) segmentsInRange(settings *models.Settings, rng string) ([]models.Segment, error) {
	now := l.clock.Now()
	days := rangeDays(rng)

	var out []models.Segment
	for i := 0; i < days; i++ {
		dayKey := timekey.DayKey(settings.TimeZone, now.Add(-time.Duration(i)*24*time.Hour))
		segs, err := l.db.LoadSegments(dayKey)
		if err != nil {
			return nil, err
		}
		out = append(out, segs...)
	}

	if rng == "1h" {
		cutoff := now.Add(-time.Hour).UnixMilli()
		filtered := out[:0]
		for _, s := range out {
			if s.TS >= cutoff {
				filtered = append(filtered, s)
			}
		}
		out = filtered
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out, nil
}

// RangeTotals sums seconds per fine category across the range window. Every
// configured category appears in the result, zero-filled when absent.
func (l *Ledger) RangeTotals(settings *models.Settings, rng string) (map[string]int64, error) {
	segs, err := l.segmentsInRange(settings, rng)
	if err != nil {
		return nil, err
	}

	raw := map[string]int64{}
	for _, s := range segs {
		raw[s.Category] += s.Seconds
	}

	totals := map[string]int64{}
	for _, name := range settings.CategoryNames() {
		totals[name] = raw[name]
	}
	return totals, nil
}

// TopDomainPairs aggregates segment seconds by (domain, category) across the
// range, sorted descending, truncated to limit (clamped to [1,50]).
func (l *Ledger) TopDomainPairs(settings *models.Settings, rng string, limit int) ([]models.DomainPair, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	segs, err := l.segmentsInRange(settings, rng)
	if err != nil {
		return nil, err
	}

	type pairKey struct{ domain, category string }
	agg := map[pairKey]int64{}
	for _, s := range segs {
		agg[pairKey{s.Domain, s.Category}] += s.Seconds
	}

	pairs := make([]models.DomainPair, 0, len(agg))
	for k, sec := range agg {
		pairs = append(pairs, models.DomainPair{
			Domain:   k.domain,
			Fine:     k.category,
			Umbrella: settings.Umbrella(k.category),
			Seconds:  sec,
		})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Seconds > pairs[j].Seconds })
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

// Timeline returns the raw ordered segment list for the range window, the
// most granular export format.
func (l *Ledger) Timeline(settings *models.Settings, rng string) ([]models.Segment, error) {
	return l.segmentsInRange(settings, rng)
}
