package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/igo95862/DiscordBot-lib-sub000/events"
	"github.com/igo95862/DiscordBot-lib-sub000/internal/storage"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type eventLine struct {
	Type     string              `json:"t"`
	Sequence int64               `json:"s"`
	Data     jsoniter.RawMessage `json:"d"`
}

type recordLine struct {
	Seq        uint64              `json:"seq"`
	RecordedAt time.Time           `json:"recorded_at"`
	Type       string              `json:"t"`
	GatewaySeq int64               `json:"s"`
	Data       jsoniter.RawMessage `json:"d"`
}

// printEvents writes one JSON line per event until ctx ends or in closes.
func printEvents(ctx context.Context, in <-chan events.Event, w io.Writer) error {
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			if err := enc.Encode(eventLine{Type: ev.Type, Sequence: ev.Sequence, Data: rawOrNull(ev.Data)}); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
		}
	}
}

// writeRecords writes one JSON line per journal record.
func writeRecords(w io.Writer, recs []storage.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		line := recordLine{
			Seq:        r.Seq,
			RecordedAt: r.RecordedAt,
			Type:       r.Type,
			GatewaySeq: r.GatewaySeq,
			Data:       rawOrNull(r.Data),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write record %d: %w", r.Seq, err)
		}
	}
	return nil
}

func rawOrNull(b []byte) jsoniter.RawMessage {
	if len(b) == 0 {
		return jsoniter.RawMessage("null")
	}
	return jsoniter.RawMessage(b)
}
