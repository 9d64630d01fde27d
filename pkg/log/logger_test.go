package log

import (
	"strings"
	"testing"
)

type captureOutput struct {
	lines []string
}

func (c *captureOutput) Write(_ *Entry, formatted []byte) error {
	c.lines = append(c.lines, string(formatted))
	return nil
}

func (c *captureOutput) Close() error { return nil }

func TestLevelGate(t *testing.T) {
	out := &captureOutput{}
	l := NewLogger(WithLevel(WarnLevel), WithOutput(out))
	l.Debug("nope")
	l.Info("nope")
	l.Warn("yes")
	l.Error("yes")
	if len(out.lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %v", len(out.lines), out.lines)
	}
}

func TestWithFieldsCarry(t *testing.T) {
	out := &captureOutput{}
	l := NewLogger(WithLevel(DebugLevel), WithOutput(out), WithFormatter(&TextFormatter{}))
	l = l.WithComponent("outbox").With(Str("key", "abc"))
	l.Info("drained", Int("count", 3))
	if len(out.lines) != 1 {
		t.Fatalf("want 1 line, got %d", len(out.lines))
	}
	line := out.lines[0]
	for _, want := range []string{"component=outbox", "key=abc", "count=3", "drained"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line missing %q: %s", want, line)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	out := &captureOutput{}
	l := NewLogger(WithLevel(InfoLevel), WithOutput(out), WithFormatter(&JSONFormatter{}))
	l.Info("hello", Str("a", "b"))
	if len(out.lines) != 1 {
		t.Fatalf("want 1 line")
	}
	if !strings.Contains(out.lines[0], `"msg":"hello"`) || !strings.Contains(out.lines[0], `"a":"b"`) {
		t.Fatalf("unexpected json: %s", out.lines[0])
	}
}

func TestParseLevel(t *testing.T) {
	if lv, err := ParseLevel("warn"); err != nil || lv != WarnLevel {
		t.Fatalf("parse warn: %v %v", lv, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
