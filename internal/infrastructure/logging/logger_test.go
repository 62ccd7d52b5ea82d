package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLogger(t *testing.T) {
	l := NewLogger("debug", "json")
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %v", l.GetLevel())
	}
	var buf bytes.Buffer
	l.SetOutput(&buf)
	ForService(l, "scanner").Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output: %v (%s)", err, buf.String())
	}
	if entry["service"] != "scanner" || entry["msg"] != "hello" {
		t.Errorf("unexpected entry: %v", entry)
	}

	if NewLogger("nonsense", "text").GetLevel() != logrus.InfoLevel {
		t.Error("invalid level should fall back to info")
	}
}
