// Package queue holds the offline action queue: the ordered list of pending
// mutations, the rules that collapse conflicting edits to the same record,
// and the durable mirror that survives restarts.
package queue

import "spesesync/internal/core"

// The collapse functions never mutate their input; each returns a fresh slice.

// CollapseAdd drops any pending action for the record and appends the Add.
// A repeated Add therefore moves to the newest position.
func CollapseAdd(q []core.PendingAction, r core.Record) []core.PendingAction {
	out := make([]core.PendingAction, 0, len(q)+1)
	for _, a := range q {
		if a.RecordID() == r.ID {
			continue
		}
		out = append(out, a)
	}
	return append(out, core.AddAction(r))
}

// CollapseUpdate folds an edit into the queue. An unsynced Add absorbs the
// new payload at its original position. A pending Delete wins and the edit is
// dropped. Otherwise the edit replaces any earlier Update for the record.
func CollapseUpdate(q []core.PendingAction, r core.Record) []core.PendingAction {
	out := make([]core.PendingAction, 0, len(q)+1)
	absorbed := false
	deleted := false
	for _, a := range q {
		if a.RecordID() != r.ID {
			out = append(out, a)
			continue
		}
		switch a.Kind {
		case core.ActionAdd:
			out = append(out, core.AddAction(r))
			absorbed = true
		case core.ActionUpdate:
			// superseded
		case core.ActionDelete:
			deleted = true
			out = append(out, a)
		}
	}
	if absorbed || deleted {
		return out
	}
	return append(out, core.UpdateAction(r))
}

// CollapseDelete removes every pending Add or Update for id and appends a
// single Delete. A second delete of the same id is a no-op.
func CollapseDelete(q []core.PendingAction, id string) []core.PendingAction {
	out := make([]core.PendingAction, 0, len(q)+1)
	hasDelete := false
	for _, a := range q {
		if a.RecordID() == id {
			if a.Kind == core.ActionDelete {
				hasDelete = true
				out = append(out, a)
			}
			continue
		}
		out = append(out, a)
	}
	if hasDelete {
		return out
	}
	return append(out, core.DeleteAction(id))
}
