package event

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/trajectly/trt/internal/schema"
	"github.com/trajectly/trt/internal/store"
)

// AppendJSONL appends ev to the trace file at path, creating parent
// directories and the file itself as needed.
func AppendJSONL(path string, ev schema.Event) error {
	return store.AppendJSONL(path, ev)
}

// ReadJSONL reads a full trace from a JSONL file, one Event per line.
// Blank lines are skipped. Events missing an event_id (legacy traces) have
// one computed and assigned on load rather than persisted back.
func ReadJSONL(path string) ([]schema.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var events []schema.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev schema.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("event: parse %s line %d: %w", path, lineNo, err)
		}
		if err := Validate(ev); err != nil {
			return nil, fmt.Errorf("event: %s line %d: %w", path, lineNo, err)
		}
		if ev.EventID == "" {
			id, err := ComputeEventID(ev)
			if err != nil {
				return nil, fmt.Errorf("event: %s line %d: compute event id: %w", path, lineNo, err)
			}
			ev.EventID = id
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
