// Package sloghooks reports kvstore hook events to a *slog.Logger.
package sloghooks

import (
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/unkn0wn-root/kvstore"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	MergeEvery uint64
	// Optional key redactor. Defaults to an xxhash hex digest.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	mergeCtr atomic.Uint64
}

var _ kvstore.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return strconv.FormatUint(xxhash.Sum64String(k), 16)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) MergeApplied(key string, candidates int, aliased bool) {
	if h.l == nil || !sample(h.opts.MergeEvery, &h.mergeCtr) {
		return
	}
	h.l.Debug("kvstore.merge_applied",
		"key", h.redact(key),
		"candidates", candidates,
		"aliased", aliased)
}

func (h *Hooks) BackendError(op, key string, err error) {
	if h.l == nil {
		return
	}
	attrs := []any{"op", op, "err", err}
	if key != "" {
		attrs = append(attrs, "key", h.redact(key))
	}
	h.l.Warn("kvstore.backend_error", attrs...)
}

func (h *Hooks) AllocFailed(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("kvstore.alloc_failed",
		"op", op,
		"err", err)
}
