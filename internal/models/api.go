package models

// CategoryMeta describes one configured category in range responses.
type CategoryMeta struct {
	Name     string `json:"name"`
	Umbrella string `json:"umbrella"`
}

// TodayStatsResponse is returned by the today-stats operation.
type TodayStatsResponse struct {
	OK            bool        `json:"ok"`
	Data          *DailyStats `json:"data"`
	Category      string      `json:"category"`
	Umbrella      string      `json:"umbrella"`
	CurrentDomain string      `json:"current_domain"`
	LastSwitchTs  int64       `json:"last_switch_ts"`
}

// StatsRangeFineResponse carries per-fine-category totals for a range.
type StatsRangeFineResponse struct {
	OK             bool             `json:"ok"`
	TotalsFine     map[string]int64 `json:"totals_fine"`
	Range          string           `json:"range"`
	CategoriesMeta []CategoryMeta   `json:"categories_meta"`
}

// DomainPair is one ranked (domain, category) aggregate.
type DomainPair struct {
	Domain   string `json:"domain"`
	Fine     string `json:"fine"`
	Umbrella string `json:"umbrella"`
	Seconds  int64  `json:"seconds"`
}

// TopDomainPairsResponse is returned by the top-pairs operation.
type TopDomainPairsResponse struct {
	OK             bool         `json:"ok"`
	TopDomainPairs []DomainPair `json:"top_domain_pairs"`
	Range          string       `json:"range"`
}

// TimelineResponse is the raw ordered segment list for a range.
type TimelineResponse struct {
	OK    bool      `json:"ok"`
	Segs  []Segment `json:"segs"`
	Range string    `json:"range"`
}

// ReclassifyResponse reports the category applied after a forced
// re-resolution.
type ReclassifyResponse struct {
	OK       bool   `json:"ok"`
	Category string `json:"category"`
}

// PrefsResponse wraps the UI preference passthrough.
type PrefsResponse struct {
	OK    bool    `json:"ok"`
	Prefs UIPrefs `json:"prefs"`
}

// RestAlarmResponse reports the reminder policy on/off state.
type RestAlarmResponse struct {
	OK      bool `json:"ok"`
	Enabled bool `json:"enabled"`
}

// ClearDataResponse reports how many persisted records were removed.
type ClearDataResponse struct {
	OK      bool `json:"ok"`
	Cleared int  `json:"cleared"`
}

// AckResponse is the generic success/failure envelope.
type AckResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Event is one entry from the external tab/window event feed.
type Event struct {
	Type  string `json:"type"` // "tab_activated", "tab_updated", "window_focus"
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Event type constants.
const (
	EventTabActivated = "tab_activated"
	EventTabUpdated   = "tab_updated"
	EventWindowFocus  = "window_focus"
)

// Rest-modal action constants.
const (
	ActionCloseOnce = "closeOnce"
	ActionSnooze30  = "snooze30"
	ActionDisable   = "disable"
)
