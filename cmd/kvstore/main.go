// Package main is the kvstore command: get, set and remove values in a store
// described by a TOML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/internal/config"
)

const usage = `usage: kvstore [-config file] <command> [args]

commands:
  get KEY
  set [-type T] [-ttl D] KEY VALUE
  rm KEY
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "kvstore:", err)
		if errors.Is(err, kvstore.ErrNotFound) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("kvstore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configFile := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cfg := config.New()
	if *configFile != "" {
		if err := cfg.Load(*configFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	logger, closeLog, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.Warn("close store", kvstore.Fields{"err": err})
		}
	}()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "get":
		return get(ctx, store, rest, stdout)
	case "set":
		return set(ctx, store, rest, stderr)
	case "rm":
		return remove(ctx, store, rest)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func get(ctx context.Context, s *kvstore.Store, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("get: expected KEY")
	}
	v, err := s.Get(ctx, nil, kvstore.Key(args[0]))
	if err != nil {
		return err
	}
	defer v.Destroy()
	if _, err := out.Write(v.Payload()); err != nil {
		return err
	}
	_, err = io.WriteString(out, "\n")
	return err
}

func set(ctx context.Context, s *kvstore.Store, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(stderr)
	typ := fs.String("type", "", "Type tag stored with the value")
	ttl := fs.Duration("ttl", 0, "Expiration relative to now; 0 = never")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("set: expected KEY VALUE")
	}

	v := s.NewValue()
	defer v.Destroy()
	v.SetPayload([]byte(fs.Arg(1)))
	v.SetType([]byte(*typ))
	v.SetCreation(time.Now())
	if *ttl > 0 {
		v.SetExpiration(*ttl)
	}
	return s.Set(ctx, nil, kvstore.Key(fs.Arg(0)), v)
}

func remove(ctx context.Context, s *kvstore.Store, args []string) error {
	if len(args) != 1 {
		return errors.New("rm: expected KEY")
	}
	return s.Remove(ctx, kvstore.Key(args[0]))
}
