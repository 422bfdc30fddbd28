package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/llyrli/working-mode/internal/llm"
	"github.com/llyrli/working-mode/internal/models"
)

// Request is a page to classify.
type Request struct {
	URL   string
	Title string
}

// Result is the outcome of the pipeline. Category is always one of the
// configured names; malformed model output never propagates outside that set.
type Result struct {
	Category      string
	Reason        string
	Confidence    float64
	SuggestedRule *models.SuggestedRule
}

// Classifier resolves a (url, title) pair to a fine category using cascading
// strategies: learned rule, keyword heuristics, remote inference, and an
// anti-degenerate fallback. It is a total function: every input yields a
// category.
type Classifier struct {
	client *llm.Client
}

// New creates a classifier backed by the given inference client.
func New(client *llm.Client) *Classifier {
	return &Classifier{client: client}
}

// ExtractDomain returns the hostname of a URL, or "unknown" when the URL
// cannot be parsed or has no host.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

// Classify runs the resolution stages in order; the first success wins.
func (c *Classifier) Classify(ctx context.Context, req Request, settings *models.Settings) *Result {
	domain := ExtractDomain(req.URL)
	catNames := settings.CategoryNames()
	restCats := settings.RestCategories()

	// A) learned rules
	if learned, ok := settings.LearnedRules[domain]; ok {
		if canonical, valid := settings.CanonicalCategory(learned); valid {
			return &Result{Category: canonical, Reason: "learned rule", Confidence: 1.0}
		}
	}

	// B) heuristics, biased away from "other"
	if h := heuristicCategory(req.URL, req.Title, settings); h != "" {
		cat := normToOneOf(h, catNames)
		return &Result{
			Category:   cat,
			Reason:     "heuristic match",
			Confidence: 0.9,
			SuggestedRule: &models.SuggestedRule{
				Apply: true, Domain: domain, Category: cat, Type: "whitelist",
			},
		}
	}

	// C) no credential configured: anti-other fallback only
	if settings.APIKey == "" {
		guess := antiOtherFallback(req.URL, req.Title, catNames, restCats)
		if guess == "" {
			return &Result{Category: models.CategoryOther, Reason: "no api key", Confidence: 0.0}
		}
		return &Result{Category: normToOneOf(guess, catNames), Reason: "no api key", Confidence: 0.6}
	}

	// D) remote inference, preferring rest categories for leisure content
	prompt := buildPrompt(req.URL, req.Title, domain, catNames, restCats)
	for _, trial := range modelTrials(settings.Model) {
		raw, err := c.client.Generate(ctx, trial.version, trial.model, settings.APIKey, prompt)
		if err != nil {
			log.Printf("inference failed (%s/%s): %v", trial.version, trial.model, err)
			continue
		}
		parsed := parseInference(raw)
		if parsed == nil || parsed.Category == "" {
			continue
		}

		cat := parsed.Category
		if _, ok := settings.CanonicalCategory(cat); !ok {
			cat = models.CategoryOther
		}
		if strings.EqualFold(cat, models.CategoryOther) {
			// Retry the cheaper stages before accepting a degenerate answer.
			if guess := heuristicCategory(req.URL, req.Title, settings); guess != "" {
				cat = guess
			} else if guess := antiOtherFallback(req.URL, req.Title, catNames, restCats); guess != "" {
				cat = guess
			}
		}

		reason := parsed.Reason
		if reason == "" {
			reason = "LLM"
		}
		return &Result{
			Category:      normToOneOf(cat, catNames),
			Reason:        reason,
			Confidence:    parsed.Confidence,
			SuggestedRule: parsed.SuggestedRule,
		}
	}

	// E) total fallback
	guess := heuristicCategory(req.URL, req.Title, settings)
	if guess == "" {
		guess = antiOtherFallback(req.URL, req.Title, catNames, restCats)
	}
	if guess == "" {
		return &Result{Category: models.CategoryOther, Reason: "fallback", Confidence: 0.1}
	}
	return &Result{Category: normToOneOf(guess, catNames), Reason: "fallback", Confidence: 0.6}
}

type trial struct {
	version string
	model   string
}

// modelTrials builds the ordered, de-duplicated (version, model) list: the
// configured model first, then the built-in fallbacks.
func modelTrials(configured string) []trial {
	candidates := []trial{}
	if m := strings.TrimSpace(configured); m != "" {
		candidates = append(candidates, trial{"v1", m})
	}
	candidates = append(candidates,
		trial{"v1", "gemini-2.0-flash"},
		trial{"v1", "gemini-2.0-pro"},
	)

	seen := map[string]bool{}
	out := make([]trial, 0, len(candidates))
	for _, t := range candidates {
		key := t.version + ":" + t.model
		if !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

// normToOneOf resolves a name case-insensitively against the configured
// category list, falling back to "other".
func normToOneOf(name string, categories []string) string {
	want := strings.ToLower(name)
	for _, c := range categories {
		if strings.ToLower(c) == want {
			return c
		}
	}
	return models.CategoryOther
}

func buildPrompt(pageURL, title, domain string, categories, restCats []string) string {
	catsLine := strings.Join(categories, ", ")
	restLine := strings.Join(restCats, ", ")
	return strings.TrimSpace(fmt.Sprintf(`
You are a strict JSON machine. Choose ONE category from: %s.
Unless it is truly unknown or generic, do NOT use "other".
- For entertainment/leisure (video/music/streaming/gaming/anime/short-video/live-streaming), choose a category under the "rest" umbrella: [%s].
Guidelines: Prefer specific categories; use host/path/title; output STRICT JSON keys: category, reason, confidence, suggest_rule.
Examples:
Input: URL=https://www.youtube.com/watch?v=abc, Title="Lo-fi beats"
Output: {"category":"entertainment","reason":"video streaming","confidence":0.95,"suggest_rule":{"apply":true,"domain":"youtube.com","category":"entertainment","type":"whitelist"}}
Input: URL=https://github.com/user/repo, Title="Readme"
Output: {"category":"work","reason":"code hosting","confidence":0.9,"suggest_rule":{"apply":true,"domain":"github.com","category":"work","type":"whitelist"}}

URL: %s
Title: %s
Domain: %s
ONLY return JSON like:
{"category":"<one of [%s]>","reason":"<short>","confidence":0.0-1.0,"suggest_rule":{"apply":true|false,"domain":"%s","category":"<same>","type":"whitelist"}}
`, catsLine, restLine, pageURL, title, domain, catsLine, domain))
}

// inferenceResult is the JSON contract of the remote classifier.
type inferenceResult struct {
	Category      string                `json:"category"`
	Reason        string                `json:"reason"`
	Confidence    float64               `json:"confidence"`
	SuggestedRule *models.SuggestedRule `json:"suggest_rule"`
}

// parseInference turns raw model output into a sanitized result, or nil when
// no JSON object can be recovered.
func parseInference(raw string) *inferenceResult {
	obj := extractJSON(raw)
	if obj == nil {
		return nil
	}
	out := &inferenceResult{
		Category:      obj.Category,
		Reason:        truncate(obj.Reason, 60),
		Confidence:    clamp01(obj.Confidence),
		SuggestedRule: sanitizeSuggestedRule(obj.SuggestedRule),
	}
	return out
}

var bracesRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON strips optional code fencing and parses the first JSON object
// found: direct parse first, then brace extraction.
func extractJSON(text string) *inferenceResult {
	t := strings.TrimSpace(text)
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	t = strings.TrimSpace(t)

	var out inferenceResult
	if err := json.Unmarshal([]byte(t), &out); err == nil {
		return &out
	}
	if m := bracesRe.FindString(t); m != "" {
		out = inferenceResult{}
		if err := json.Unmarshal([]byte(m), &out); err == nil {
			return &out
		}
	}
	return nil
}

// sanitizeSuggestedRule promotes a rule to apply only when domain, category,
// and the explicit apply flag are all present.
func sanitizeSuggestedRule(sr *models.SuggestedRule) *models.SuggestedRule {
	if sr == nil {
		return &models.SuggestedRule{Type: "whitelist"}
	}
	return &models.SuggestedRule{
		Apply:    sr.Apply && sr.Domain != "" && sr.Category != "",
		Domain:   sr.Domain,
		Category: sr.Category,
		Type:     "whitelist",
	}
}

func clamp01(x float64) float64 {
	if x != x || x < 0 { // NaN floors to 0
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
