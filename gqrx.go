// scanner using gqrx remote control
//
// Copyright 2026 Franco Venturi.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// gqrx remote control defaults
const (
	defaultHost    = "127.0.0.1"
	defaultPort    = 7356
	defaultSquelch = -20.0
)

// wait times
var waitDial = 2000 * time.Millisecond
var waitResponse = 1000 * time.Millisecond

var ErrConnection = errors.New("gqrx connection failed")
var ErrMalformedResponse = errors.New("gqrx malformed response")
var ErrRejected = errors.New("gqrx rejected command")

// Client talks to the gqrx remote control interface. Every request uses its
// own TCP connection, which is closed by the trailing "c" command.
type Client struct {
	host            string
	port            int
	squelch         float64
	responseTimeout time.Duration
	dialer          proxy.Dialer
	log             *zap.SugaredLogger
}

func NewClient(host string, port int, squelch float64, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		host:            host,
		port:            port,
		squelch:         squelch,
		responseTimeout: waitResponse,
		dialer:          proxy.FromEnvironmentUsing(&net.Dialer{Timeout: waitDial}),
		log:             log,
	}
}

func (c *Client) Address() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Squelch is the default squelch threshold given at construction.
func (c *Client) Squelch() float64 {
	return c.squelch
}

func (c *Client) SetFrequency(ctx context.Context, frequency int64) (string, error) {
	return c.setRequest(ctx, fmt.Sprintf("F %d", frequency))
}

func (c *Client) GetFrequency(ctx context.Context) (string, error) {
	return c.request(ctx, "f")
}

// Frequency returns the tuned frequency in Hz.
func (c *Client) Frequency(ctx context.Context) (int64, error) {
	response, err := c.GetFrequency(ctx)
	if err != nil {
		return 0, err
	}
	if err = checkReport(response); err != nil {
		return 0, err
	}
	frequency, err := strconv.ParseInt(response, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frequency %q", ErrMalformedResponse, response)
	}
	return frequency, nil
}

func (c *Client) SetMode(ctx context.Context, mode Mode) (string, error) {
	return c.setRequest(ctx, "M "+mode.String())
}

func (c *Client) GetMode(ctx context.Context) (string, error) {
	return c.request(ctx, "m")
}

func (c *Client) GetLevel(ctx context.Context) (string, error) {
	return c.request(ctx, "l")
}

// Level returns the current signal strength in dBFS.
func (c *Client) Level(ctx context.Context) (float64, error) {
	response, err := c.GetLevel(ctx)
	if err != nil {
		return 0, err
	}
	if err = checkReport(response); err != nil {
		return 0, err
	}
	level, err := strconv.ParseFloat(response, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: level %q", ErrMalformedResponse, response)
	}
	return level, nil
}

func (c *Client) SetSquelch(ctx context.Context, squelch float64) (string, error) {
	return c.setRequest(ctx, "L SQL "+strconv.FormatFloat(squelch, 'f', -1, 64))
}

func (c *Client) GetSquelch(ctx context.Context) (string, error) {
	return c.request(ctx, "l SQL")
}

// set commands answer with "RPRT <code>"
func (c *Client) setRequest(ctx context.Context, command string) (response string, err error) {
	response, err = c.request(ctx, command)
	if err != nil {
		return
	}
	err = checkReport(response)
	if err != nil {
		err = fmt.Errorf("%s: %w", command, err)
	}
	return
}

func (c *Client) request(ctx context.Context, command string) (response string, err error) {
	if !isASCII(command) {
		err = fmt.Errorf("command %q is not ASCII", command)
		return
	}

	address := c.Address()
	conn, err := c.dial(ctx, address)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrConnection, address, err)
		return
	}
	defer conn.Close()

	err = conn.SetDeadline(time.Now().Add(c.responseTimeout))
	if err != nil {
		err = fmt.Errorf("%w: deadline %q: %w", ErrConnection, command, err)
		return
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	_, err = conn.Write([]byte(command + "\n"))
	if err != nil {
		err = fmt.Errorf("%w: send %q: %w", ErrConnection, command, err)
		return
	}
	buffer := make([]byte, 1024)
	n, err := conn.Read(buffer)
	if err != nil {
		err = fmt.Errorf("%w: receive %q: %w", ErrConnection, command, err)
		return
	}
	response = strings.TrimSpace(string(buffer[:n]))

	_, err = conn.Write([]byte("c\n"))
	if err != nil {
		err = fmt.Errorf("%w: close %q: %w", ErrConnection, command, err)
		return
	}
	c.log.Debugw("gqrx", "command", command, "response", response)
	return
}

func (c *Client) dial(ctx context.Context, address string) (net.Conn, error) {
	if dialer, ok := c.dialer.(proxy.ContextDialer); ok {
		return dialer.DialContext(ctx, "tcp", address)
	}
	return c.dialer.Dial("tcp", address)
}

func checkReport(response string) error {
	code, ok := strings.CutPrefix(response, "RPRT")
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrMalformedResponse, response)
	}
	if n != 0 {
		return fmt.Errorf("%w: %s", ErrRejected, response)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 || s[i] == '\n' {
			return false
		}
	}
	return true
}
