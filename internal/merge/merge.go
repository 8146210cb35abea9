// Package merge folds the pending queue into a remote snapshot to produce
// the list a user sees, without a server round trip.
package merge

import "spesesync/internal/core"

// View returns the displayed records for snapshot with queue applied:
// deleted records are dropped, updated records are substituted in place and
// unsynced adds are placed in front, newest first. The result holds at most
// one record per id; the first occurrence wins.
func View(snapshot []core.Record, queue []core.PendingAction) []core.Record {
	var adds []core.Record
	updates := make(map[string]core.Record)
	deleted := make(map[string]struct{})

	for _, a := range queue {
		switch a.Kind {
		case core.ActionAdd:
			adds = append(adds, a.Record)
		case core.ActionUpdate:
			updates[a.Record.ID] = a.Record
		case core.ActionDelete:
			deleted[a.ID] = struct{}{}
		}
	}

	out := make([]core.Record, 0, len(adds)+len(snapshot))
	for i := len(adds) - 1; i >= 0; i-- {
		out = append(out, adds[i])
	}
	for _, r := range snapshot {
		if _, gone := deleted[r.ID]; gone {
			continue
		}
		if u, ok := updates[r.ID]; ok {
			r = u
		}
		out = append(out, r)
	}

	return dedupe(out)
}

func dedupe(records []core.Record) []core.Record {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Pending maps a record id to the kind of the unsynced action touching it.
type Pending map[string]core.ActionKind

// PendingMarkers reports which records in the merged view still carry local
// changes. Deletes are omitted since deleted records are not displayed.
func PendingMarkers(queue []core.PendingAction) Pending {
	m := make(Pending, len(queue))
	for _, a := range queue {
		if a.Kind == core.ActionDelete {
			continue
		}
		m[a.RecordID()] = a.Kind
	}
	return m
}

// Is reports whether id has an unsynced change.
func (p Pending) Is(id string) bool {
	_, ok := p[id]
	return ok
}
