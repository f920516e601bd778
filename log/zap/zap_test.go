package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/kvstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Info("i", kvstore.Fields{"key": "k"})
	l.Warn("w", kvstore.Fields{"err": errors.New("boom")})
	l.Error("e", kvstore.Fields{"b": 2, "a": 1})

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Fatalf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
	}
	if got := entries[1].ContextMap()["key"]; got != "k" {
		t.Fatalf("key field = %v", got)
	}
	if got := entries[2].ContextMap()["err"]; got != "boom" {
		t.Fatalf("err field = %v", got)
	}
	if f := entries[3].Context; len(f) != 2 || f[0].Key != "a" || f[1].Key != "b" {
		t.Fatalf("fields not sorted: %+v", f)
	}
}

func TestNewNil(t *testing.T) {
	New(nil).Info("dropped", kvstore.Fields{"x": 1})
}
