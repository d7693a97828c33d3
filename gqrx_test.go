// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// fakeGqrx answers one command per connection and records every line it
// receives on that connection, the trailing "c" included
type fakeGqrx struct {
	listener net.Listener
	reply    func(command string) string
	sessions chan []string
}

func newFakeGqrx(t *testing.T, reply func(command string) string) *fakeGqrx {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeGqrx{
		listener: listener,
		reply:    reply,
		sessions: make(chan []string, 64),
	}
	t.Cleanup(func() { listener.Close() })
	go f.serve()
	return f
}

func (f *fakeGqrx) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeGqrx) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	reader := bufio.NewReader(conn)
	var lines []string
	command, err := reader.ReadString('\n')
	if err != nil {
		f.sessions <- lines
		return
	}
	lines = append(lines, command)
	conn.Write([]byte(f.reply(strings.TrimSuffix(command, "\n")) + "\n"))

	closing, _ := reader.ReadString('\n')
	if closing != "" {
		lines = append(lines, closing)
	}
	f.sessions <- lines
}

func (f *fakeGqrx) port() int {
	return f.listener.Addr().(*net.TCPAddr).Port
}

func (f *fakeGqrx) client(t *testing.T) *Client {
	return NewClient("127.0.0.1", f.port(), defaultSquelch, zaptest.NewLogger(t).Sugar())
}

func (f *fakeGqrx) nextSession(t *testing.T) []string {
	t.Helper()
	select {
	case lines := <-f.sessions:
		return lines
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gqrx session")
		return nil
	}
}

func TestClientCommandFraming(t *testing.T) {
	gqrx := newFakeGqrx(t, func(command string) string {
		switch command {
		case "f":
			return "8800000"
		case "m":
			return "WFM_ST\n160000"
		case "l":
			return "-42.5"
		case "l SQL":
			return "-20.0"
		default:
			return "RPRT 0"
		}
	})
	client := gqrx.client(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() (string, error)
		command  string
		response string
	}{
		{"set frequency", func() (string, error) { return client.SetFrequency(ctx, 8800000) }, "F 8800000\n", "RPRT 0"},
		{"get frequency", func() (string, error) { return client.GetFrequency(ctx) }, "f\n", "8800000"},
		{"set mode", func() (string, error) { return client.SetMode(ctx, ParseMode("WFM_ST")) }, "M WFM_ST\n", "RPRT 0"},
		{"set unknown mode", func() (string, error) { return client.SetMode(ctx, ParseMode("FREEDV")) }, "M FREEDV\n", "RPRT 0"},
		{"get mode", func() (string, error) { return client.GetMode(ctx) }, "m\n", "WFM_ST\n160000"},
		{"get level", func() (string, error) { return client.GetLevel(ctx) }, "l\n", "-42.5"},
		{"set squelch", func() (string, error) { return client.SetSquelch(ctx, -20) }, "L SQL -20\n", "RPRT 0"},
		{"set fractional squelch", func() (string, error) { return client.SetSquelch(ctx, -17.5) }, "L SQL -17.5\n", "RPRT 0"},
		{"get squelch", func() (string, error) { return client.GetSquelch(ctx) }, "l SQL\n", "-20.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := tt.call()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if response != tt.response {
				t.Fatalf("response = %q, want %q", response, tt.response)
			}
			lines := gqrx.nextSession(t)
			if len(lines) != 2 || lines[0] != tt.command || lines[1] != "c\n" {
				t.Fatalf("session = %q, want [%q \"c\\n\"]", lines, tt.command)
			}
		})
	}
}

func TestClientOpensConnectionPerRequest(t *testing.T) {
	gqrx := newFakeGqrx(t, func(string) string { return "RPRT 0" })
	client := gqrx.client(t)

	for i := 0; i < 3; i++ {
		if _, err := client.SetFrequency(context.Background(), int64(8800000+i*50000)); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		if lines := gqrx.nextSession(t); len(lines) != 2 {
			t.Fatalf("session %d carried %d lines, want 2", i, len(lines))
		}
	}
}

func TestClientParsedValues(t *testing.T) {
	gqrx := newFakeGqrx(t, func(command string) string {
		switch command {
		case "f":
			return "8800000"
		case "l":
			return "-15"
		}
		return "RPRT 0"
	})
	client := gqrx.client(t)

	frequency, err := client.Frequency(context.Background())
	if err != nil || frequency != 8800000 {
		t.Fatalf("Frequency() = %d, %v", frequency, err)
	}
	level, err := client.Level(context.Background())
	if err != nil || level != -15 {
		t.Fatalf("Level() = %v, %v", level, err)
	}
}

func TestClientConnectionError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	client := NewClient("127.0.0.1", port, defaultSquelch, zaptest.NewLogger(t).Sugar())
	_, err = client.Level(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("connection error must not look like a parse error: %v", err)
	}
}

func TestClientMalformedLevel(t *testing.T) {
	gqrx := newFakeGqrx(t, func(string) string { return "not-a-number" })
	client := gqrx.client(t)

	_, err := client.Level(context.Background())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if errors.Is(err, ErrConnection) {
		t.Fatalf("parse error must not look like a connection error: %v", err)
	}
}

func TestClientRejectedCommand(t *testing.T) {
	gqrx := newFakeGqrx(t, func(string) string { return "RPRT 1" })
	client := gqrx.client(t)

	response, err := client.SetFrequency(context.Background(), -1)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if response != "RPRT 1" {
		t.Fatalf("raw response = %q", response)
	}

	_, err = client.Level(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected for level, got %v", err)
	}
}

func TestClientNoResponse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(time.Second)
	}()

	client := NewClient("127.0.0.1", listener.Addr().(*net.TCPAddr).Port, defaultSquelch, zaptest.NewLogger(t).Sugar())
	client.responseTimeout = 50 * time.Millisecond
	_, err = client.GetLevel(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection on timeout, got %v", err)
	}
}

func TestClientRejectsNonASCII(t *testing.T) {
	client := NewClient("127.0.0.1", defaultPort, defaultSquelch, nil)
	if _, err := client.SetMode(context.Background(), ParseMode("WFM°")); err == nil {
		t.Fatal("expected error for non-ASCII mode")
	}
}

func TestClientDefaults(t *testing.T) {
	client := NewClient(defaultHost, defaultPort, defaultSquelch, nil)
	if client.Address() != "127.0.0.1:7356" {
		t.Fatalf("Address() = %q", client.Address())
	}
	if client.Squelch() != -20 {
		t.Fatalf("Squelch() = %v", client.Squelch())
	}
}

func TestScannerOverClient(t *testing.T) {
	gqrx := newFakeGqrx(t, func(command string) string {
		if command == "l" {
			return "-15"
		}
		return "RPRT 0"
	})
	scanner := NewScanner(gqrx.client(t), -20, zaptest.NewLogger(t).Sugar())
	var sleeps []time.Duration
	scanner.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	var discoveries []Discovery
	scanner.OnDiscovery = func(discovery Discovery) {
		discoveries = append(discoveries, discovery)
	}

	scanRange, err := NewScanRange(88.0, 88.0, ParseMode("WFM_ST"), defaultStep)
	if err != nil {
		t.Fatal(err)
	}
	scanRange.Laps = 1
	if err := scanner.Scan(context.Background(), scanRange); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	for _, command := range []string{"M WFM_ST\n", "F 8800000\n", "L SQL -20\n", "l\n"} {
		lines := gqrx.nextSession(t)
		if len(lines) != 2 || lines[0] != command || lines[1] != "c\n" {
			t.Fatalf("session = %q, want %q then c", lines, command)
		}
	}
	if len(discoveries) != 1 || discoveries[0].Frequency != 8800000 || discoveries[0].Level != -15 {
		t.Fatalf("discoveries = %+v", discoveries)
	}
	if len(sleeps) != 2 || sleeps[0] != waitSettle || sleeps[1] != waitDwell {
		t.Fatalf("sleeps = %v", sleeps)
	}
}

var errNoDeadline = errors.New("deadline not supported")

type noDeadlineConn struct {
	net.Conn
}

func (noDeadlineConn) SetDeadline(time.Time) error {
	return errNoDeadline
}

type pipeDialer struct {
	conns []net.Conn
}

func (d *pipeDialer) Dial(network, address string) (net.Conn, error) {
	client, server := net.Pipe()
	d.conns = append(d.conns, server)
	return noDeadlineConn{client}, nil
}

func TestClientDeadlineError(t *testing.T) {
	dialer := &pipeDialer{}
	client := NewClient("127.0.0.1", defaultPort, defaultSquelch, zaptest.NewLogger(t).Sugar())
	client.dialer = dialer
	defer func() {
		for _, conn := range dialer.conns {
			conn.Close()
		}
	}()

	_, err := client.GetLevel(context.Background())
	if !errors.Is(err, ErrConnection) || !errors.Is(err, errNoDeadline) {
		t.Fatalf("expected ErrConnection wrapping the deadline error, got %v", err)
	}
	if len(dialer.conns) != 1 {
		t.Fatalf("dialed %d times, want 1", len(dialer.conns))
	}
}
