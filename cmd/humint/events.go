package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/MrWong99/humint/pkg/events"
)

// printEvents writes up to limit stored events to w, newest first, one JSON
// object per line. The first sink that can read back is used.
func printEvents(ctx context.Context, w io.Writer, sinks events.MultiSink, keyword string, limit int) error {
	store := sinks.Store()
	if store == nil {
		return errors.New("no configured sink can list events; add a sqlite or postgres sink")
	}

	var (
		records []events.Record
		err     error
	)
	if keyword != "" {
		records, err = store.ByKeyword(ctx, keyword, limit)
	} else {
		records, err = store.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	for _, r := range records {
		line, err := sonic.Marshal(r.Payload())
		if err != nil {
			return fmt.Errorf("encode event %d: %w", r.ID, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}
