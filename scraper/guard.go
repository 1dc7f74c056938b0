package scraper

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	challengeAttempts = 12
	challengePollWait = 5 * time.Second
)

var challengeTitleMarks = []string{
	"Challenge",
	"Checking",
	"Just a moment",
	"Bir dakika",
}

var challengeBodyMarks = []string{
	"cf-challenge",
	"Checking your browser",
	"Verifying you are human",
	"turnstile",
}

// challengeTrigger reports which signature identifies the current page
// as an anti-bot interstitial, or "" when the page looks real.
func challengeTrigger(title, content string) string {
	for _, mark := range challengeTitleMarks {
		if strings.Contains(title, mark) {
			return mark
		}
	}
	for _, mark := range challengeBodyMarks {
		if strings.Contains(content, mark) {
			return mark
		}
	}
	return ""
}

// waitForClearance polls the page until the challenge signatures
// disappear. It returns ErrChallengeTimeout when the window runs out;
// callers proceed anyway since the interstitial sometimes resolves in
// the background.
func waitForClearance(ctx context.Context, page playwright.Page) error {
	title, err := page.Title()
	if err != nil {
		return nil
	}
	content, _ := page.Content()

	trigger := challengeTrigger(title, content)
	if trigger == "" {
		return nil
	}

	log.Printf("Anti-bot challenge detected (%s), waiting for clearance", trigger)

	for attempt := 0; attempt < challengeAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(challengePollWait):
		}

		title, err = page.Title()
		if err != nil {
			continue
		}
		content, _ = page.Content()

		if challengeTrigger(title, content) == "" {
			log.Printf("Challenge cleared after %d attempt(s)", attempt+1)
			return nil
		}
	}

	return ErrChallengeTimeout
}
