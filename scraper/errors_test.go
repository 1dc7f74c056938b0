package scraper

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSetup(t *testing.T) {
	if !IsSetup(setupErr("playwright", errors.New("driver not installed"))) {
		t.Error("direct setup error not recognized")
	}
	if IsSetup(errors.New("page yielded no recognizable fields")) {
		t.Error("plain error recognized as setup")
	}
	if IsSetup(nil) {
		t.Error("nil recognized as setup")
	}
}

// A setup failure surfaced through RunAll arrives wrapped with the site
// id. The classification has to survive that wrapping so the command
// still exits non-zero.
func TestIsSetupThroughWrapping(t *testing.T) {
	inner := setupErr("browser", errors.New("launch failed"))
	wrapped := fmt.Errorf("site hepsiemlak: %w", inner)
	if !IsSetup(wrapped) {
		t.Fatal("wrapped setup error not recognized")
	}

	var se *SetupError
	if !errors.As(wrapped, &se) || se.Stage != "browser" {
		t.Fatalf("unexpected unwrap result: %v", se)
	}
}
