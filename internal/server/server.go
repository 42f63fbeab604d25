// Package server hosts the TCP front end and the tick-driven game world. The
// connection layer runs one goroutine pair per socket; all game state belongs
// to the world tick.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Server accepts raw TCP connections and hands them to the world.
type Server struct {
	addr   string
	logger *log.Logger
	world  *World

	ln net.Listener
}

// New creates a server for the given listen address.
func New(addr string, world *World, logger *log.Logger) *Server {
	return &Server{
		addr:   addr,
		logger: logger.WithPrefix("server"),
		world:  world,
	}
}

// Run listens, then drives the accept loop and the world tick until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.logger.Info("listening", "addr", ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		return s.world.Run(ctx)
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("server: accept: %w", err)
			}
			c := NewConnection(conn, s.world, s.logger)
			go c.Serve()
		}
	})

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Addr returns the bound listen address, valid once Run has started
// listening.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
