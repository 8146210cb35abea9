package core

import "fmt"

// SyncStatus reports where the sync driver is in its cycle.
// Done means "the last attempt finished", not "it succeeded".
type SyncStatus int

const (
	SyncIdle SyncStatus = iota
	SyncSyncing
	SyncDone
)

func (s SyncStatus) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncSyncing:
		return "syncing"
	case SyncDone:
		return "done"
	default:
		return fmt.Sprintf("SyncStatus(%d)", int(s))
	}
}

func (s SyncStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SyncStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = SyncIdle
	case "syncing":
		*s = SyncSyncing
	case "done":
		*s = SyncDone
	default:
		return fmt.Errorf("unknown sync status %q", text)
	}
	return nil
}
