package classifier

import (
	"regexp"
	"strings"

	"github.com/llyrli/working-mode/internal/models"
)

// Built-in category signatures. Matched against lowercased url+domain+title.
var (
	learningNameRe = regexp.MustCompile(`english|language.*learn|learn.*english`)
	learningSiteRe = regexp.MustCompile(`duolingo|bbc\.co\.uk/learningenglish|ef\.com|ielts|toefl|voa.*learning|quizlet|dictionary\.cambridge|deepl|youglish`)

	entertainmentRe = regexp.MustCompile(`youtube|bilibili|twitch|netflix|iqiyi|youku|spotify|music\.apple\.com|soundcloud|vimeo|hulu|disneyplus|steamcommunity|store\.steampowered\.com|epicgames|douyin|tiktok|nico.*video`)
	socialRe        = regexp.MustCompile(`twitter|x\.com|weibo|reddit|facebook|instagram`)
	workRe          = regexp.MustCompile(`docs\.google|drive\.google|notion|confluence|jira|github|gitlab|figma|slack|linear|asana|microsoft\.sharepoint`)
	studyRe         = regexp.MustCompile(`wikipedia|arxiv|khanacademy|coursera|udemy|edx|brilliant|mit\.edu/open|classroom\.google`)
	utilityRe       = regexp.MustCompile(`mail\.google|outlook\.live|calendar\.google|maps\.google|bank|alipay|paypal|wise\.com|booking|airbnb|map\.`)

	// Narrower sets for the anti-other fallback.
	antiEntertainmentRe = regexp.MustCompile(`youtube|bilibili|twitch|netflix|iqiyi|youku|spotify|music\.apple\.com|soundcloud|hulu|disneyplus|steam|epicgames|douyin|tiktok|nico.*video`)
	antiWorkRe          = regexp.MustCompile(`docs\.google|drive\.google|notion|confluence|jira|github|gitlab|figma|slack|linear`)
	antiStudyRe         = regexp.MustCompile(`wikipedia|arxiv|khanacademy|coursera|udemy|edx|brilliant`)
	antiUtilityRe       = regexp.MustCompile(`mail\.google|outlook\.live|calendar\.google|maps\.google|bank|alipay|paypal|wise\.com`)
)

// heuristicCategory pattern-matches the page text against the built-in
// signatures plus user-defined category names. Returns "" when nothing hits.
func heuristicCategory(pageURL, title string, settings *models.Settings) string {
	u := strings.ToLower(pageURL)
	t := strings.ToLower(title)
	text := u + t

	catNames := settings.CategoryNames()
	has := func(name string) bool {
		_, ok := settings.CanonicalCategory(name)
		return ok
	}
	isRest := func(name string) bool {
		return strings.EqualFold(settings.Umbrella(name), models.UmbrellaRest)
	}

	// User-defined language-learning categories win over the generic sets.
	for _, c := range catNames {
		if learningNameRe.MatchString(strings.ToLower(c)) && learningSiteRe.MatchString(text) {
			return c
		}
	}

	if entertainmentRe.MatchString(text) {
		if has("entertainment") && isRest("entertainment") {
			return "entertainment"
		}
		if has("social") && isRest("social") {
			return "social"
		}
		for _, c := range catNames {
			if isRest(c) {
				return c
			}
		}
	}

	if socialRe.MatchString(text) && has("social") && isRest("social") {
		return "social"
	}
	if workRe.MatchString(text) && has("work") {
		return "work"
	}
	if studyRe.MatchString(text) && has("study") {
		return "study"
	}
	if utilityRe.MatchString(text) && has("utility") {
		return "utility"
	}

	// Any user category whose name appears verbatim in the page text.
	for _, c := range catNames {
		name := strings.ToLower(c)
		if name == "" || name == models.CategoryOther {
			continue
		}
		if strings.Contains(u, name) || strings.Contains(t, name) {
			return c
		}
	}
	return ""
}

// antiOtherFallback is the narrower guess used when no credential is
// configured or every other stage failed: biased toward returning a
// non-"other" rest-umbrella category for entertainment-looking domains.
func antiOtherFallback(pageURL, title string, categories, restCats []string) string {
	text := strings.ToLower(pageURL) + strings.ToLower(title)

	has := func(name string) bool {
		for _, c := range categories {
			if strings.EqualFold(c, name) {
				return true
			}
		}
		return false
	}
	restHas := func(name string) bool {
		for _, c := range restCats {
			if strings.EqualFold(c, name) {
				return true
			}
		}
		return false
	}

	if antiEntertainmentRe.MatchString(text) {
		if has("entertainment") && restHas("entertainment") {
			return "entertainment"
		}
		if has("social") && restHas("social") {
			return "social"
		}
		if len(restCats) > 0 {
			return restCats[0]
		}
	}
	if has("social") && socialRe.MatchString(text) {
		return "social"
	}
	if has("work") && antiWorkRe.MatchString(text) {
		return "work"
	}
	if has("study") && antiStudyRe.MatchString(text) {
		return "study"
	}
	if has("utility") && antiUtilityRe.MatchString(text) {
		return "utility"
	}
	return ""
}
