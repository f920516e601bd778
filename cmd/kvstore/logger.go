package main

import (
	"fmt"
	"io"
	stdslog "log/slog"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/internal/config"
	kvlogrus "github.com/unkn0wn-root/kvstore/log/logrus"
	kvslog "github.com/unkn0wn-root/kvstore/log/slog"
	kvzap "github.com/unkn0wn-root/kvstore/log/zap"
)

// newLogger builds the configured logger writing to w. The returned func
// flushes buffered output.
func newLogger(cfg config.Log, w io.Writer) (kvstore.Logger, func(), error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	nop := func() {}

	switch cfg.Kind {
	case "none":
		return kvstore.NopLogger{}, nop, nil
	case "zap":
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nop, err
		}
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		l := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
		return kvzap.New(l), func() { _ = l.Sync() }, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, nop, err
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(lvl)
		return kvlogrus.New(l), nop, nil
	case "", "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, nop, err
		}
		h := stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: lvl})
		return kvslog.New(stdslog.New(h)), nop, nil
	}
	return nil, nop, fmt.Errorf("unknown log kind %q", cfg.Kind)
}
