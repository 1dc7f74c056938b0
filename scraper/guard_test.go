package scraper

import "testing"

func TestChallengeTrigger(t *testing.T) {
	cases := []struct {
		name    string
		title   string
		content string
		want    string
	}{
		{"cloudflare title", "Just a moment...", "<html></html>", "Just a moment"},
		{"challenge title", "Challenge Validation", "", "Challenge"},
		{"checking title", "Checking your browser before accessing", "", "Checking"},
		{"turkish interstitial", "Bir dakika...", "", "Bir dakika"},
		{"body marker only", "hepsiemlak", `<div id="cf-challenge-running"></div>`, "cf-challenge"},
		{"turnstile widget", "emlakjet", `<div class="turnstile-wrapper"></div>`, "turnstile"},
		{"real listing page", "Satılık Daire Konyaaltı - Emlakjet", "<h1>Daire</h1>", ""},
		{"empty page", "", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := challengeTrigger(tc.title, tc.content); got != tc.want {
				t.Errorf("challengeTrigger(%q, ...) = %q, want %q", tc.title, got, tc.want)
			}
		})
	}
}
