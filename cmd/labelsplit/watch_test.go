package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeInbox struct {
	queued []string
	files  chan string
	exited chan struct{}
}

func newFakeInbox(files ...string) *fakeInbox {
	return &fakeInbox{queued: files, files: make(chan string), exited: make(chan struct{})}
}

func (f *fakeInbox) Files() <-chan string { return f.files }

func (f *fakeInbox) Run(ctx context.Context) error {
	defer close(f.exited)
	defer close(f.files)
	for _, path := range f.queued {
		select {
		case f.files <- path:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

func TestServeInbox(t *testing.T) {
	t.Run("handles files until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		in := newFakeInbox("a.pdf", "b.pdf")

		var got []string
		err := serveInbox(ctx, in, func(ctx context.Context, src string) error {
			got = append(got, src)
			if len(got) == 2 {
				cancel()
			}
			return nil
		})
		if err != nil {
			t.Fatalf("serveInbox failed: %v", err)
		}
		if len(got) != 2 || got[0] != "a.pdf" || got[1] != "b.pdf" {
			t.Errorf("handled %v, want [a.pdf b.pdf]", got)
		}
	})

	t.Run("handler error stops the watcher", func(t *testing.T) {
		in := newFakeInbox("a.pdf", "b.pdf", "c.pdf")
		printErr := errors.New("broken pipe")

		done := make(chan error, 1)
		go func() {
			done <- serveInbox(context.Background(), in, func(ctx context.Context, src string) error {
				return printErr
			})
		}()

		select {
		case err := <-done:
			if !errors.Is(err, printErr) {
				t.Errorf("got %v, want %v", err, printErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("serveInbox did not return after a handler error")
		}
		select {
		case <-in.exited:
		default:
			t.Error("watcher still running after serveInbox returned")
		}
	})
}
