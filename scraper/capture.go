package scraper

import (
	"context"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// responseCapture grabs the body of the first successful response whose
// URL contains the given fragment. The OnResponse callback fires on
// playwright's event goroutine, so delivery goes through a channel and
// a once guard; later matches are dropped.
type responseCapture struct {
	match string
	once  sync.Once
	ch    chan []byte
}

// captureResponse must be armed before navigation so the request that
// fires during page load cannot race the handler registration.
func captureResponse(page playwright.Page, urlFragment string) *responseCapture {
	rc := &responseCapture{
		match: urlFragment,
		ch:    make(chan []byte, 1),
	}

	page.OnResponse(func(response playwright.Response) {
		if response.Status() != 200 || !strings.Contains(response.URL(), rc.match) {
			return
		}
		go func() {
			body, err := response.Body()
			if err != nil || len(body) == 0 {
				return
			}
			rc.once.Do(func() {
				rc.ch <- body
			})
		}()
	})

	return rc
}

// wait blocks until the matching response arrives or ctx expires.
func (rc *responseCapture) wait(ctx context.Context) ([]byte, error) {
	select {
	case body := <-rc.ch:
		return body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
