package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForZeroDuration(t *testing.T) {
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("expected nil for zero duration, got %v", err)
	}
}

func TestWaitForCompletes(t *testing.T) {
	if err := WaitFor(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("expected nil after waiting, got %v", err)
	}
}

func TestWaitForCancelledContext(t *testing.T) {
	block := make(chan struct{})
	prev := sleep
	sleep = func(time.Duration) { <-block }
	defer func() {
		close(block)
		sleep = prev
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
