package httpapi

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/types"
)

// The status surface has no compiled schema; protobuf replies carry a
// google.protobuf.Struct with the same keys as the JSON body.

// ── Status ───────────────────────────────────────────────────────────────────

func statusToProto(r types.StatusResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"ok":              r.OK,
		"machine_id":      r.MachineID,
		"machine_group":   r.Group,
		"state":           r.State,
		"since":           r.Since,
		"outputs":         outputsMap(r.Outputs),
		"require_card":    r.RequireCard,
		"ticks":           r.Ticks,
		"journal_dropped": r.JournalDropped,
		"server_time":     r.ServerTime,
	})
}

func outputsMap(o types.Outputs) map[string]any {
	return map[string]any{
		"red":    o.Red,
		"yellow": o.Yellow,
		"green":  o.Green,
		"relay":  o.Relay,
	}
}

// ── Events ───────────────────────────────────────────────────────────────────

func eventsToProto(events []types.EventView) (*structpb.Struct, error) {
	list := make([]any, 0, len(events))
	for _, e := range events {
		m := map[string]any{
			"kind": e.Kind,
			"at":   e.At,
		}
		if e.From != "" {
			m["from"] = e.From
		}
		if e.To != "" {
			m["to"] = e.To
		}
		if e.CardIDHash != "" {
			m["card_id_hash"] = e.CardIDHash
		}
		if e.Decision != "" {
			m["decision"] = e.Decision
		}
		if e.Reason != "" {
			m["reason"] = e.Reason
		}
		list = append(list, m)
	}
	return structpb.NewStruct(map[string]any{"events": list})
}
