package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestOnlyInvalidInputIsFatal(t *testing.T) {
	cause := fmt.Errorf("underlying")

	fatal := NewInvalidInputError("/in/x.pdf", cause)
	if !fatal.IsFatal() {
		t.Error("invalid input must be fatal")
	}

	recoverable := []*ExtractionError{
		NewPageExtractionError(3, cause),
		NewOCRFailedError(3, cause),
		NewOCRUnavailableError(3),
		NewTableEngineError(3, "lattice", cause),
		NewSessionIOError("abc", cause),
	}
	for _, e := range recoverable {
		if e.IsFatal() {
			t.Errorf("%s must not be fatal", e.Code)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	e := NewPageExtractionError(1, cause)
	if !errors.Is(e, cause) {
		t.Error("cause must be reachable through Unwrap")
	}
	if !strings.Contains(e.Error(), "root cause") {
		t.Errorf("cause missing from message: %s", e.Error())
	}
}

func TestToMap(t *testing.T) {
	e := NewTableEngineError(7, "stream", fmt.Errorf("boom"))
	m := e.ToMap()

	if m["error_code"] != string(ErrorTableEngine) {
		t.Errorf("unexpected code %v", m["error_code"])
	}
	if m["page"] != 7 {
		t.Errorf("unexpected page %v", m["page"])
	}
	if m["cause"] != "boom" {
		t.Errorf("unexpected cause %v", m["cause"])
	}

	// Zero-valued fields stay out of the map.
	noPage := NewInvalidInputError("/x", nil)
	if _, ok := noPage.ToMap()["page"]; ok {
		t.Error("page should be omitted when unset")
	}
}
