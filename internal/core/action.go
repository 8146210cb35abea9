package core

import (
	"encoding/json"
	"fmt"
)

// ActionKind tags a PendingAction.
type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
)

// PendingAction is one local mutation not yet confirmed by the remote store.
// Add and Update carry a full Record; Delete carries only the record id.
type PendingAction struct {
	Kind   ActionKind
	Record Record
	ID     string
}

// AddAction returns an Add for r.
func AddAction(r Record) PendingAction {
	return PendingAction{Kind: ActionAdd, Record: r}
}

// UpdateAction returns an Update for r.
func UpdateAction(r Record) PendingAction {
	return PendingAction{Kind: ActionUpdate, Record: r}
}

// DeleteAction returns a Delete for id.
func DeleteAction(id string) PendingAction {
	return PendingAction{Kind: ActionDelete, ID: id}
}

// RecordID returns the id of the record the action targets.
func (a PendingAction) RecordID() string {
	if a.Kind == ActionDelete {
		return a.ID
	}
	return a.Record.ID
}

func (a PendingAction) String() string {
	return fmt.Sprintf("%s(%s)", a.Kind, a.RecordID())
}

// wireAction is the persisted layout: {"kind": ..., "payload": Record|string}.
type wireAction struct {
	Kind    ActionKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (a PendingAction) MarshalJSON() ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch a.Kind {
	case ActionAdd, ActionUpdate:
		payload, err = json.Marshal(a.Record)
	case ActionDelete:
		payload, err = json.Marshal(a.ID)
	default:
		return nil, fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireAction{Kind: a.Kind, Payload: payload})
}

func (a *PendingAction) UnmarshalJSON(data []byte) error {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case ActionAdd, ActionUpdate:
		var r Record
		if err := json.Unmarshal(w.Payload, &r); err != nil {
			return fmt.Errorf("decode %s payload: %w", w.Kind, err)
		}
		*a = PendingAction{Kind: w.Kind, Record: r}
	case ActionDelete:
		var id string
		if err := json.Unmarshal(w.Payload, &id); err != nil {
			return fmt.Errorf("decode delete payload: %w", err)
		}
		*a = PendingAction{Kind: ActionDelete, ID: id}
	default:
		return fmt.Errorf("unknown action kind %q", w.Kind)
	}
	return nil
}
