package main

import (
	"errors"
	"log/slog"
)

// cleanup collects release functions for resources acquired during startup.
// If startup fails part way, run releases whatever was acquired so far.
type cleanup struct {
	fns []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

func (c *cleanup) add(name string, fn func() error) {
	c.fns = append(c.fns, namedCloser{name: name, fn: fn})
}

// run calls every function in reverse order of registration, logging and
// joining failures. It empties c, so a second call does nothing.
func (c *cleanup) run() error {
	var errs []error
	for i := len(c.fns) - 1; i >= 0; i-- {
		nc := c.fns[i]
		if err := nc.fn(); err != nil {
			slog.Warn("startup cleanup failed", "resource", nc.name, "err", err)
			errs = append(errs, err)
		}
	}
	c.fns = nil
	return errors.Join(errs...)
}
