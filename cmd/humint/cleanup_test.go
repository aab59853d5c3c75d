package main

import (
	"errors"
	"slices"
	"testing"
)

func TestCleanup_RunsInReverseAndContinuesOnError(t *testing.T) {
	t.Parallel()
	var order []string
	record := func(name string, err error) func() error {
		return func() error {
			order = append(order, name)
			return err
		}
	}
	boom := errors.New("flush failed")

	var c cleanup
	c.add("sinks", record("sinks", nil))
	c.add("telemetry", record("telemetry", boom))
	c.add("providers", record("providers", nil))

	err := c.run()
	if !errors.Is(err, boom) {
		t.Errorf("run() = %v; want it to carry %v", err, boom)
	}
	if want := []string{"providers", "telemetry", "sinks"}; !slices.Equal(order, want) {
		t.Errorf("order = %v; want %v", order, want)
	}

	order = nil
	if err := c.run(); err != nil || len(order) != 0 {
		t.Errorf("second run() = %v, ran %v; want no-op", err, order)
	}
}
