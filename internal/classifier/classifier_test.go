package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/llyrli/working-mode/internal/llm"
	"github.com/llyrli/working-mode/internal/models"
)

func testSettings() *models.Settings {
	s := models.DefaultSettings()
	s.Normalize()
	return s
}

func geminiResponse(text string) string {
	body := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func TestLearnedRuleDeterminism(t *testing.T) {
	settings := testSettings()
	settings.LearnedRules["example.com"] = "work"
	c := New(llm.NewClient(""))

	titles := []string{"anything", "Cat videos", ""}
	for _, title := range titles {
		res := c.Classify(context.Background(), Request{URL: "https://example.com/some/path", Title: title}, settings)
		if res.Category != "work" {
			t.Errorf("title %q: expected work, got %s", title, res.Category)
		}
		if res.Reason != "learned rule" {
			t.Errorf("title %q: expected learned rule reason, got %s", title, res.Reason)
		}
		if res.Confidence != 1.0 {
			t.Errorf("title %q: expected confidence 1.0, got %f", title, res.Confidence)
		}
	}
}

func TestLearnedRuleWithStaleTargetIgnored(t *testing.T) {
	settings := testSettings()
	settings.LearnedRules["example.org"] = "gaming" // not configured
	c := New(llm.NewClient(""))

	res := c.Classify(context.Background(), Request{URL: "https://example.org/page", Title: "plain page"}, settings)
	if res.Reason == "learned rule" {
		t.Error("stale learned rule must not win")
	}
	if res.Category != "other" {
		t.Errorf("expected other, got %s", res.Category)
	}
}

func TestHeuristicMatch(t *testing.T) {
	c := New(llm.NewClient(""))

	tests := []struct {
		name     string
		url      string
		title    string
		expected string
	}{
		{"video streaming", "https://www.youtube.com/watch?v=x", "some video", "entertainment"},
		{"code hosting", "https://github.com/user/repo", "Readme", "work"},
		{"encyclopedia", "https://en.wikipedia.org/wiki/Go", "Go", "study"},
		{"social feed", "https://www.reddit.com/r/golang", "r/golang", "social"},
		{"webmail", "https://mail.google.com/u/0", "Inbox", "utility"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := c.Classify(context.Background(), Request{URL: tc.url, Title: tc.title}, testSettings())
			if res.Category != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, res.Category)
			}
			if res.Reason != "heuristic match" {
				t.Errorf("expected heuristic match, got %s", res.Reason)
			}
			if res.Confidence != 0.9 {
				t.Errorf("expected confidence 0.9, got %f", res.Confidence)
			}
			if res.SuggestedRule == nil || !res.SuggestedRule.Apply {
				t.Error("expected an applicable suggested rule")
			}
		})
	}
}

func TestAntiOtherBiasWithoutCredentials(t *testing.T) {
	// Only work and a rest-umbrella entertainment are configured; an
	// entertainment-looking domain must not degenerate to "other".
	settings := &models.Settings{
		CategoriesConfig: []models.CategoryConfig{
			{Name: "work", Umbrella: models.UmbrellaWork},
			{Name: "entertainment", Umbrella: models.UmbrellaRest},
		},
	}
	settings.Normalize()
	c := New(llm.NewClient(""))

	res := c.Classify(context.Background(), Request{URL: "https://www.youtube.com/watch?v=x", Title: "some video"}, settings)
	if res.Category != "entertainment" {
		t.Errorf("expected entertainment, got %s", res.Category)
	}
}

func TestEntertainmentFallsToAnyRestCategory(t *testing.T) {
	settings := &models.Settings{
		CategoriesConfig: []models.CategoryConfig{
			{Name: "work", Umbrella: models.UmbrellaWork},
			{Name: "chill", Umbrella: models.UmbrellaRest},
		},
	}
	settings.Normalize()
	c := New(llm.NewClient(""))

	res := c.Classify(context.Background(), Request{URL: "https://www.twitch.tv/somestream", Title: "live"}, settings)
	if res.Category != "chill" {
		t.Errorf("expected chill, got %s", res.Category)
	}
}

func TestNoCredentialUnknownDomainIsOther(t *testing.T) {
	c := New(llm.NewClient(""))

	res := c.Classify(context.Background(), Request{URL: "https://example.org/page", Title: "plain page"}, testSettings())
	if res.Category != "other" {
		t.Errorf("expected other, got %s", res.Category)
	}
	if res.Reason != "no api key" {
		t.Errorf("expected no api key reason, got %s", res.Reason)
	}
	if res.Confidence != 0.0 {
		t.Errorf("expected confidence 0.0, got %f", res.Confidence)
	}
}

func TestInferenceSuccess(t *testing.T) {
	var sawKey atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawKey.Store(r.URL.Query().Get("key"))
		if !strings.Contains(r.URL.Path, "/v1/models/test-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, geminiResponse("```json\n{\"category\":\"social\",\"reason\":\"microblogging\",\"confidence\":0.95,\"suggest_rule\":{\"apply\":true,\"domain\":\"example.net\",\"category\":\"social\",\"type\":\"whitelist\"}}\n```"))
	}))
	defer server.Close()

	settings := testSettings()
	settings.APIKey = "secret"
	settings.Model = "test-model"
	c := New(llm.NewClient(server.URL))

	res := c.Classify(context.Background(), Request{URL: "https://example.net/feed", Title: "plain"}, settings)
	if res.Category != "social" {
		t.Errorf("expected social, got %s", res.Category)
	}
	if res.Reason != "microblogging" {
		t.Errorf("expected model reason, got %s", res.Reason)
	}
	if res.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", res.Confidence)
	}
	if res.SuggestedRule == nil || !res.SuggestedRule.Apply {
		t.Error("expected sanitized rule to stay applicable")
	}
	if sawKey.Load() != "secret" {
		t.Errorf("expected api key as query parameter, got %v", sawKey.Load())
	}
}

func TestInferenceOtherRetriesFallbacks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiResponse(`{"category":"other","reason":"unsure","confidence":0.4}`))
	}))
	defer server.Close()

	settings := testSettings()
	settings.APIKey = "secret"
	c := New(llm.NewClient(server.URL))

	// steamdb misses the primary signatures but the narrower anti-other set
	// recognizes "steam", so a degenerate model answer gets upgraded.
	res := c.Classify(context.Background(), Request{URL: "https://steamdb.info/app/1", Title: ""}, settings)
	if res.Category != "entertainment" {
		t.Errorf("expected entertainment, got %s", res.Category)
	}
	if res.Reason != "unsure" {
		t.Errorf("expected model reason preserved, got %s", res.Reason)
	}
	if res.Confidence != 0.4 {
		t.Errorf("expected confidence 0.4, got %f", res.Confidence)
	}
}

func TestInferenceUnknownCategoryCoerced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiResponse(`{"category":"gaming","reason":"game store","confidence":0.8}`))
	}))
	defer server.Close()

	settings := testSettings()
	settings.APIKey = "secret"
	c := New(llm.NewClient(server.URL))

	res := c.Classify(context.Background(), Request{URL: "https://example.org/page", Title: "plain page"}, settings)
	if res.Category != "other" {
		t.Errorf("expected unknown category coerced to other, got %s", res.Category)
	}
}

func TestInferenceRetriesTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, geminiResponse(`{"category":"work","reason":"docs","confidence":0.9}`))
	}))
	defer server.Close()

	settings := testSettings()
	settings.APIKey = "secret"
	c := New(llm.NewClient(server.URL))

	res := c.Classify(context.Background(), Request{URL: "https://example.org/doc", Title: "project notes"}, settings)
	if res.Category != "work" {
		t.Errorf("expected work after retry, got %s", res.Category)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestTotalFallbackWhenAllModelsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	settings := testSettings()
	settings.APIKey = "secret"
	c := New(llm.NewClient(server.URL))

	res := c.Classify(context.Background(), Request{URL: "https://example.org/page", Title: "plain page"}, settings)
	if res.Category != "other" {
		t.Errorf("expected other, got %s", res.Category)
	}
	if res.Reason != "fallback" {
		t.Errorf("expected fallback reason, got %s", res.Reason)
	}
	if res.Confidence != 0.1 {
		t.Errorf("expected confidence 0.1, got %f", res.Confidence)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category string
		wantNil  bool
	}{
		{"plain object", `{"category":"work"}`, "work", false},
		{"fenced json", "```json\n{\"category\":\"work\"}\n```", "work", false},
		{"fenced bare", "```\n{\"category\":\"work\"}\n```", "work", false},
		{"surrounding prose", `Sure! {"category":"work"} Hope that helps.`, "work", false},
		{"garbage", "not json at all", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := extractJSON(tc.input)
			if tc.wantNil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected parse, got nil")
			}
			if got.Category != tc.category {
				t.Errorf("expected %q, got %q", tc.category, got.Category)
			}
		})
	}
}

func TestReasonTruncatedOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 70)
	parsed := parseInference(fmt.Sprintf(`{"category":"work","reason":%q,"confidence":0.9}`, long))
	if parsed == nil {
		t.Fatal("expected parse")
	}
	if got := parsed.Reason; got != strings.Repeat("é", 60) {
		t.Errorf("expected 60 whole runes, got %d bytes %q", len(got), got)
	}
	if !utf8.ValidString(parsed.Reason) {
		t.Error("truncation split a rune")
	}
}

func TestSanitizeSuggestedRule(t *testing.T) {
	tests := []struct {
		name      string
		rule      *models.SuggestedRule
		wantApply bool
	}{
		{"nil", nil, false},
		{"complete", &models.SuggestedRule{Apply: true, Domain: "a.com", Category: "work"}, true},
		{"missing domain", &models.SuggestedRule{Apply: true, Category: "work"}, false},
		{"missing category", &models.SuggestedRule{Apply: true, Domain: "a.com"}, false},
		{"apply false", &models.SuggestedRule{Domain: "a.com", Category: "work"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := sanitizeSuggestedRule(tc.rule)
			if got.Apply != tc.wantApply {
				t.Errorf("expected apply=%v, got %v", tc.wantApply, got.Apply)
			}
			if got.Type != "whitelist" {
				t.Errorf("expected whitelist type, got %s", got.Type)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{-1, 0},
		{2, 1},
		{0, 0},
		{1, 1},
	}
	for _, tc := range tests {
		if got := clamp01(tc.in); got != tc.want {
			t.Errorf("clamp01(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestModelTrialsDedupe(t *testing.T) {
	trials := modelTrials("gemini-2.0-flash")
	if len(trials) != 2 {
		t.Fatalf("expected 2 deduped trials, got %d", len(trials))
	}
	if trials[0].model != "gemini-2.0-flash" || trials[1].model != "gemini-2.0-pro" {
		t.Errorf("unexpected trial order: %v", trials)
	}

	trials = modelTrials("custom-model")
	if len(trials) != 3 {
		t.Fatalf("expected 3 trials, got %d", len(trials))
	}
	if trials[0].model != "custom-model" {
		t.Errorf("configured model must come first, got %s", trials[0].model)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.youtube.com/watch?v=x", "www.youtube.com"},
		{"http://example.org", "example.org"},
		{"not a url", "unknown"},
		{"", "unknown"},
	}
	for _, tc := range tests {
		if got := ExtractDomain(tc.url); got != tc.expected {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tc.url, got, tc.expected)
		}
	}
}
