package main

import (
	"bytes"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunHelp(t *testing.T) {
	var stdout bytes.Buffer
	if exit := run([]string{"--help"}, &stdout, io.Discard); exit != 0 {
		t.Fatalf("help exit %d", exit)
	}
	if !strings.Contains(stdout.String(), "--listen-addr") {
		t.Fatalf("expected usage output, got %q", stdout.String())
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	cases := map[string][]string{
		"unknown flag":     {"--nope"},
		"invalid timezone": {"--timezone", "Nowhere/Special"},
		"missing config":   {"--config", filepath.Join(t.TempDir(), "missing.json")},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stderr bytes.Buffer
			if exit := run(args, io.Discard, &stderr); exit != 2 {
				t.Fatalf("exit %d, want 2", exit)
			}
			if stderr.Len() == 0 {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestRunFailsWhenDatabaseCannotOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "no", "such", "dir", "comply.db")
	if exit := run([]string{"--db-path", dbPath}, io.Discard, io.Discard); exit != 1 {
		t.Fatalf("exit %d, want 1", exit)
	}
}

func TestRunExitsWhenListenAddressIsTaken(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	dbPath := filepath.Join(t.TempDir(), "comply.db")
	var stdout bytes.Buffer
	exit := run([]string{"--db-path", dbPath, "--listen-addr", l.Addr().String()}, &stdout, io.Discard)
	if exit != 1 {
		t.Fatalf("exit %d, want 1", exit)
	}
	if !strings.Contains(stdout.String(), "exited with error") {
		t.Fatalf("expected shutdown error in log, got %q", stdout.String())
	}
}
