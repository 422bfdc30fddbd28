package models

import "strings"

// Umbrella constants. Every fine category maps into exactly one of these.
const (
	UmbrellaWork  = "work"
	UmbrellaRest  = "rest"
	UmbrellaOther = "other"
)

// CategoryOther is the fallback fine category. Settings normalization
// guarantees it is always configured.
const CategoryOther = "other"

// CategoryConfig pairs a fine category name with its umbrella.
type CategoryConfig struct {
	Name     string `json:"name"`
	Umbrella string `json:"umbrella"`
}

// FocusPolicy holds the rest-reminder parameters.
type FocusPolicy struct {
	Enabled      bool `json:"enabled"`
	SoftAfterMin int  `json:"soft_after_min"`
	HardAfterMin int  `json:"hard_after_min"`
	CooldownMin  int  `json:"cooldown_min"`
	DailyMax     int  `json:"daily_max"`
}

// Settings is the long-lived, externally persisted configuration entity.
// It lives in the sync namespace of the store and is read-mostly.
type Settings struct {
	Enabled           bool              `json:"enabled"`
	IntervalMinutes   int               `json:"interval_minutes"`
	APIKey            string            `json:"api_key"`
	Model             string            `json:"model"`
	CategoriesConfig  []CategoryConfig  `json:"categories_config"`
	TimeZone          string            `json:"time_zone"`
	LearnedRules      map[string]string `json:"learned_rules"`
	CategoryColors    map[string]string `json:"category_colors"`
	PieRange          string            `json:"pie_range"`
	ShowCategoryTable bool              `json:"show_category_table"`
	PairsCollapsed    bool              `json:"pairs_collapsed"`
	FocusPolicy       FocusPolicy       `json:"focus_policy"`
}

// DefaultSettings returns the built-in configuration used on first run and as
// the base for load-time normalization.
func DefaultSettings() *Settings {
	return &Settings{
		Enabled:         true,
		IntervalMinutes: 5,
		Model:           "gemini-2.0-flash",
		CategoriesConfig: []CategoryConfig{
			{Name: "work", Umbrella: UmbrellaWork},
			{Name: "study", Umbrella: UmbrellaWork},
			{Name: "utility", Umbrella: UmbrellaWork},
			{Name: "social", Umbrella: UmbrellaRest},
			{Name: "entertainment", Umbrella: UmbrellaRest},
			{Name: "other", Umbrella: UmbrellaOther},
		},
		TimeZone:          "UTC",
		LearnedRules:      map[string]string{},
		CategoryColors:    map[string]string{},
		PieRange:          "1d",
		ShowCategoryTable: true,
		FocusPolicy:       FocusPolicy{Enabled: true, SoftAfterMin: 5, HardAfterMin: 15, CooldownMin: 10, DailyMax: 8},
	}
}

// Normalize repairs a settings value loaded from storage: nil maps become
// empty, an empty category list falls back to the defaults, and an "other"
// category is guaranteed to exist as the ultimate fallback target. All
// defaulting happens here, not at call sites.
func (s *Settings) Normalize() {
	if len(s.CategoriesConfig) == 0 {
		s.CategoriesConfig = DefaultSettings().CategoriesConfig
	}
	if s.LearnedRules == nil {
		s.LearnedRules = map[string]string{}
	}
	if s.CategoryColors == nil {
		s.CategoryColors = map[string]string{}
	}
	if s.IntervalMinutes < 1 {
		s.IntervalMinutes = 5
	}
	if _, ok := s.CanonicalCategory(CategoryOther); !ok {
		s.CategoriesConfig = append(s.CategoriesConfig, CategoryConfig{Name: CategoryOther, Umbrella: UmbrellaOther})
	}
}

// Umbrella maps a fine category to its umbrella, case-insensitively.
// Unconfigured names map to "other". Total function.
func (s *Settings) Umbrella(fine string) string {
	want := strings.ToLower(fine)
	for _, c := range s.CategoriesConfig {
		if strings.ToLower(c.Name) == want {
			if c.Umbrella == "" {
				return UmbrellaOther
			}
			return c.Umbrella
		}
	}
	return UmbrellaOther
}

// CanonicalCategory resolves a category name case-insensitively and returns
// the configured spelling.
func (s *Settings) CanonicalCategory(name string) (string, bool) {
	want := strings.ToLower(name)
	for _, c := range s.CategoriesConfig {
		if strings.ToLower(c.Name) == want {
			return c.Name, true
		}
	}
	return "", false
}

// CategoryNames returns the configured fine category names in order.
func (s *Settings) CategoryNames() []string {
	names := make([]string, 0, len(s.CategoriesConfig))
	for _, c := range s.CategoriesConfig {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}

// RestCategories returns the configured names under the rest umbrella.
func (s *Settings) RestCategories() []string {
	var rest []string
	for _, c := range s.CategoriesConfig {
		if strings.ToLower(c.Umbrella) == UmbrellaRest && c.Name != "" {
			rest = append(rest, c.Name)
		}
	}
	return rest
}

// DomainStat is the per-domain slice of a daily record. Seconds accumulate;
// category and umbrella are last-write-wins display fields.
type DomainStat struct {
	Category string `json:"category"`
	Umbrella string `json:"umbrella"`
	Seconds  int64  `json:"seconds"`
}

// DailyStats is the aggregate record for one local calendar day.
type DailyStats struct {
	TotalsUmbrella map[string]int64       `json:"totals_umbrella"`
	TotalsFine     map[string]int64       `json:"totals_fine"`
	ByDomain       map[string]*DomainStat `json:"by_domain"`
}

// NewDailyStats returns an empty record, created lazily on the first
// settlement of a day.
func NewDailyStats() *DailyStats {
	return &DailyStats{
		TotalsUmbrella: map[string]int64{},
		TotalsFine:     map[string]int64{},
		ByDomain:       map[string]*DomainStat{},
	}
}

// Segment is one settlement's worth of attributed time, recorded as an
// immutable timeline entry. TS is unix milliseconds.
type Segment struct {
	ID       string `json:"id"`
	TS       int64  `json:"ts"`
	Domain   string `json:"domain"`
	Category string `json:"category"`
	Umbrella string `json:"umbrella"`
	Seconds  int64  `json:"seconds"`
}

// SuggestedRule is an optional domain→category whitelist rule attached to a
// classification result, promotable to a learned rule.
type SuggestedRule struct {
	Apply    bool   `json:"apply"`
	Domain   string `json:"domain"`
	Category string `json:"category"`
	Type     string `json:"type"`
}

// UIPrefs is the opaque display-preference passthrough.
type UIPrefs struct {
	PieRange          string            `json:"pie_range"`
	ShowCategoryTable bool              `json:"show_category_table"`
	PairsCollapsed    bool              `json:"pairs_collapsed"`
	CategoryColors    map[string]string `json:"category_colors"`
	TimeZone          string            `json:"time_zone"`
}
