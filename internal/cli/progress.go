// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"coyopipe/pkg/coyopipe"
)

// newProgress picks a progress renderer for the current mode and returns
// the event handler plus a finish func to call once the stage is done.
//
// JSON mode emits one event per line; quiet mode swallows everything but
// errors; interactive terminals get a progress bar; anything else gets
// plain line output.
func newProgress(ro *RootOpts, total int) (coyopipe.ProgressFunc, func()) {
	switch {
	case ro.JSONOut:
		return jsonProgress(os.Stdout), func() {}
	case ro.Quiet:
		return quietProgress(), func() {}
	case total > 0 && term.IsTerminal(int(os.Stderr.Fd())):
		return barProgress(total)
	default:
		return plainProgress(), func() {}
	}
}

// jsonProgress returns a JSON-lines progress handler.
func jsonProgress(w *os.File) coyopipe.ProgressFunc {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	var mu sync.Mutex
	return func(ev coyopipe.ProgressEvent) {
		mu.Lock()
		_ = enc.Encode(ev)
		mu.Unlock()
	}
}

// barProgress renders a count bar over the batch, one tick per finished
// record whether it succeeded or failed.
func barProgress(total int) (coyopipe.ProgressFunc, func()) {
	bar := pb.New(total)
	bar.SetWriter(os.Stderr)
	bar.Start()

	handler := func(ev coyopipe.ProgressEvent) {
		switch ev.Event {
		case "file_done", "file_failed":
			bar.SetCurrent(int64(ev.Completed))
		}
	}
	return handler, func() { bar.Finish() }
}

// plainProgress prints one line per event, suited to non-interactive logs.
func plainProgress() coyopipe.ProgressFunc {
	return func(ev coyopipe.ProgressEvent) {
		switch ev.Event {
		case "sample_start":
			fmt.Fprintf(os.Stderr, "sampling %s ...\n", ev.Message)
		case "sample_done", "filter_done", "done":
			fmt.Fprintln(os.Stderr, ev.Message)
		case "fetch_start":
			fmt.Fprintf(os.Stderr, "fetching %d images ...\n", ev.Total)
		case "file_failed":
			fmt.Fprintf(os.Stderr, "failed %d (%s): %s\n", ev.ID, ev.Kind, ev.Message)
		case "error":
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
		}
	}
}

// quietProgress drops everything except errors.
func quietProgress() coyopipe.ProgressFunc {
	return func(ev coyopipe.ProgressEvent) {
		if ev.Event == "error" || ev.Level == "error" {
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
		}
	}
}
