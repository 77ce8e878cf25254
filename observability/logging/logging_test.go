package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLoggerEmitsCollectorKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "saisend", "prod")
	logger.Warn("treasury below threshold", "balance", "42")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["message"] != "treasury below threshold" {
		t.Fatalf("message = %v", line["message"])
	}
	if line["severity"] != "WARN" {
		t.Fatalf("severity = %v", line["severity"])
	}
	if line["service"] != "saisend" {
		t.Fatalf("service = %v", line["service"])
	}
	if line["env"] != "prod" {
		t.Fatalf("env = %v", line["env"])
	}
	if line["balance"] != "42" {
		t.Fatalf("balance = %v", line["balance"])
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatal("missing timestamp key")
	}
	for _, stale := range []string{"time", "level", "msg"} {
		if _, ok := line[stale]; ok {
			t.Fatalf("unexpected %q key", stale)
		}
	}
}

func TestLoggerOmitsEmptyEnv(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "saisend", "  ").Info("started")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if _, ok := line["env"]; ok {
		t.Fatal("env key present for blank environment")
	}
}
