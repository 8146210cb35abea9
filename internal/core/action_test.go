package core

import (
	"encoding/json"
	"testing"
)

func TestPendingActionJSONLayout(t *testing.T) {
	data, err := json.Marshal([]PendingAction{
		AddAction(Record{ID: "1", Title: "Taxi", Amount: 9, Date: "2025-01-02", Category: "Travel"}),
		DeleteAction("2"),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"kind":"add","payload":{"id":"1","title":"Taxi","amount":9,"date":"2025-01-02","category":"Travel"}},{"kind":"delete","payload":"2"}]`
	if string(data) != want {
		t.Fatalf("unexpected layout:\n got %s\nwant %s", data, want)
	}

	var back []PendingAction
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 || back[0].Kind != ActionAdd || back[0].Record.Title != "Taxi" || back[1].ID != "2" {
		t.Fatalf("unexpected decode: %+v", back)
	}
}

func TestPendingActionUnknownKind(t *testing.T) {
	var a PendingAction
	if err := json.Unmarshal([]byte(`{"kind":"upsert","payload":"1"}`), &a); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if err := json.Unmarshal([]byte(`{"kind":"delete","payload":{"id":"1"}}`), &a); err == nil {
		t.Fatal("expected error for mismatched payload")
	}
}

func TestRecordID(t *testing.T) {
	if got := UpdateAction(Record{ID: "u"}).RecordID(); got != "u" {
		t.Fatalf("RecordID() = %q", got)
	}
	if got := DeleteAction("d").RecordID(); got != "d" {
		t.Fatalf("RecordID() = %q", got)
	}
}
