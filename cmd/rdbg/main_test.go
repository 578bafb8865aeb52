package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/remotedebug/internal/config"
	"github.com/dshills/remotedebug/internal/debug/event"
	"github.com/dshills/remotedebug/internal/debug/model"
	"github.com/dshills/remotedebug/internal/debug/wire"
	"github.com/dshills/remotedebug/internal/debug/wire/wiretest"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		want event.Location
		err  bool
	}{
		{"Main:12", event.Location{Class: "Main", Line: 12}, false},
		{"com.example.Main:3", event.Location{Class: "com.example.Main", Line: 3}, false},
		{"com.example.Main.run:3", event.Location{Class: "com.example.Main", Method: "run", Line: 3}, false},
		{"Main", event.Location{}, true},
		{":4", event.Location{}, true},
		{"Main:", event.Location{}, true},
		{"Main:x", event.Location{}, true},
		{"Main:0", event.Location{}, true},
	}

	for _, tt := range tests {
		got, err := parseLocation(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("parseLocation(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLocation(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestEventPrinter(t *testing.T) {
	var buf bytes.Buffer
	printer := eventPrinter(&buf)

	printer([]model.Event{
		model.New(model.Suspend, model.BreakpointHit, "thread-3").OnThread(3).With("location", "Main:12"),
		model.New(model.Create, model.Unspecified, "vm"),
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}

	var first jsonEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("json: %v", err)
	}
	if first.Kind != "suspend" || first.Thread != 3 || first.Data["location"] != "Main:12" {
		t.Errorf("unexpected first event %+v", first)
	}

	var second jsonEvent
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("json: %v", err)
	}
	if second.Detail != "" || second.Source != "vm" {
		t.Errorf("unexpected second event %+v", second)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "rdbg "+version) {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestLaunchWithoutCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"launch", "--log-level", "error"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "no agent command") {
		t.Errorf("expected missing command error, got %v", err)
	}
}

func TestInvalidLogLevelRejected(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"attach", "--log-level", "shouting", "127.0.0.1:1"})

	start := time.Now()
	if err := root.Execute(); err == nil {
		t.Error("expected validation error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("validation should fail before dialing")
	}
}

func TestRunSessionReleasesConnectionAfterDeath(t *testing.T) {
	peer, transport := wiretest.New()
	defer peer.Close()

	g := &globals{cfg: config.Defaults(), logger: zerolog.Nop(), out: io.Discard}
	done := make(chan error, 1)
	go func() {
		done <- runSession(context.Background(), g, transport, sessionFlags{}, true)
	}()

	if _, err := peer.SendGroup("none", wire.WireEvent{Kind: "vmDeath", ExitCode: 3}); err != nil {
		t.Fatalf("send group: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runSession: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after death")
	}

	// The agent side stops serving once the client closed its end.
	select {
	case <-peer.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection still open after the session ended")
	}
	for _, cmd := range peer.Commands() {
		if cmd == wire.CommandDispose {
			t.Error("dispose sent to a debuggee that already died")
		}
	}
}
