// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

package main

import (
	"bufio"
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// Console MMIO register offsets within IORegBase: a minimal byte-wide
// UART with a data register and a one-bit ready status, the smallest
// interface a polling BIOS console driver needs.
const (
	uartDataReg   = IORegBase + 0x00
	uartStatusReg = IORegBase + 0x04

	uartStatusRxReady = 1 << 0
)

// UART bridges the CPU's polled console MMIO registers to a host input
// and output stream (main wires stdin and stderr), with a goroutine pair doing the actual blocking I/O so
// a slow or absent terminal never stalls instruction execution.
type UART struct {
	in  io.Reader
	out io.Writer

	rx     chan byte
	tx     chan byte
	tracer *Tracer

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewUART constructs a UART that will read from in and write to out
// once Start is called.
func NewUART(in io.Reader, out io.Writer) *UART {
	return &UART{
		in:  in,
		out: out,
		rx:  make(chan byte, 256),
		tx:  make(chan byte, 256),
	}
}

// Start launches the RX and TX pump goroutines under an errgroup, so a
// read or write error on either side is observable from Wait.
func (u *UART) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	u.group = g

	g.Go(func() error { return u.pumpRX(gctx) })
	g.Go(func() error { return u.pumpTX(gctx) })
}

func (u *UART) pumpRX(ctx context.Context) error {
	r := bufio.NewReader(u.in)
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return nil // EOF simply stops feeding RX
		}
		if err != nil {
			return err
		}
		select {
		case u.rx <- b:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (u *UART) pumpTX(ctx context.Context) error {
	for {
		select {
		case b := <-u.tx:
			if _, err := u.out.Write([]byte{b}); err != nil {
				return err
			}
			if u.tracer != nil {
				u.tracer.TraceConsole("out", b)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop cancels both pumps and waits for them to return.
func (u *UART) Stop() error {
	if u.cancel != nil {
		u.cancel()
	}
	if u.group != nil {
		return u.group.Wait()
	}
	return nil
}

// mmioRead services a console register read; handled reports whether
// addr was actually one of the UART's registers.
func (u *UART) mmioRead(addr uint32) (value uint8, handled bool) {
	switch addr {
	case uartDataReg:
		select {
		case b := <-u.rx:
			if u.tracer != nil {
				u.tracer.TraceConsole("in", b)
			}
			return b, true
		default:
			return 0, true
		}
	case uartStatusReg:
		status := uint8(0)
		if len(u.rx) > 0 {
			status |= uartStatusRxReady
		}
		return status, true
	}
	return 0, false
}

// mmioWrite services a console register write; reports whether addr
// was one of the UART's registers.
func (u *UART) mmioWrite(addr uint32, v uint8) bool {
	if addr != uartDataReg {
		return false
	}
	select {
	case u.tx <- v:
	default:
		// TX buffer full: drop rather than block the CPU loop.
	}
	return true
}
