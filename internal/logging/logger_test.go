package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFormatsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("pipeline", &buf)

	l.Info("page processed", "page", 3, "ocr", true)

	out := buf.String()
	for _, want := range []string{"[pipeline]", "[INFO]", "page processed", "page=3", "ocr=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestLoggerDropsDanglingKey(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("x", &buf)

	l.Warn("odd arguments", "orphan")

	if strings.Contains(buf.String(), "orphan") {
		t.Errorf("dangling key should be dropped: %s", buf.String())
	}
}
