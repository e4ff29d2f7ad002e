package main

import (
	"context"
	"os/signal"
	"syscall"
)

// contextFromSignals returns a context cancelled on SIGINT or SIGTERM,
// so an interrupted run stops page workers cooperatively.
func contextFromSignals() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}
