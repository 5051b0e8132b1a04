package services

import (
	"testing"
	"time"
)

func TestTransferStoreNewestFirst(t *testing.T) {
	store := NewTransferStore()
	a := store.Add("a", "a", TransferTypeUpload, 1)
	b := store.Add("b", "b", TransferTypeDownload, 2)

	list := store.List(false)
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Errorf("expected newest first, got %v", list)
	}
	if a.ID == b.ID {
		t.Error("transfer ids must be unique")
	}
}

func TestTransferStoreUpdate(t *testing.T) {
	store := NewTransferStore()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	tr := store.Add("a", "a", TransferTypeUpload, 1)
	if _, err := store.Update(tr.ID, TransferStateActive, ""); err != nil {
		t.Fatalf("Update(active) failed: %v", err)
	}

	failed, err := store.Update(tr.ID, TransferStateFailed, "connection reset")
	if err != nil {
		t.Fatalf("Update(failed) failed: %v", err)
	}
	if failed.Error != "connection reset" || !failed.FinishedAt.Equal(fixed) {
		t.Errorf("unexpected failed record: %+v", failed)
	}

	if _, err := store.Update(tr.ID, TransferStateActive, ""); err == nil {
		t.Error("expected error updating a finished transfer")
	} else if err.(*Error).Code() != CodeConflict {
		t.Errorf("expected 409, got %d", err.(*Error).Code())
	}

	if _, err := store.Update("missing", TransferStateActive, ""); err == nil {
		t.Error("expected error for unknown id")
	}

	got, ok := store.Get(tr.ID)
	if !ok || got.State != TransferStateFailed {
		t.Errorf("Get returned %+v, %v", got, ok)
	}
}

func TestTransferStoreRecentAndClear(t *testing.T) {
	store := NewTransferStore()
	for i := 0; i < 7; i++ {
		tr := store.Add("f", "f", TransferTypeUpload, int64(i))
		if i != 3 {
			store.Update(tr.ID, TransferStateCompleted, "")
		}
	}

	recent := store.Recent(5)
	if len(recent) != 5 {
		t.Fatalf("expected 5 recent, got %d", len(recent))
	}
	if recent[0].Size != 6 {
		t.Errorf("expected newest first, got size %d", recent[0].Size)
	}

	if removed := store.ClearDone(); removed != 6 {
		t.Errorf("expected 6 removed, got %d", removed)
	}
	if left := store.List(false); len(left) != 1 || left[0].Size != 3 {
		t.Errorf("unexpected remaining transfers: %v", left)
	}
	if done := store.List(true); len(done) != 0 {
		t.Errorf("expected no finished transfers, got %d", len(done))
	}
}

func TestFormatLink(t *testing.T) {
	tests := []struct {
		domain   string
		key      string
		markdown bool
		want     string
	}{
		{"cdn.example.com", "img/cat.png", false, "http://cdn.example.com/img/cat.png"},
		{"cdn.example.com/", "img/cat.png", false, "http://cdn.example.com/img/cat.png"},
		{"cdn.example.com", "/lead.png", false, "http://cdn.example.com//lead.png"},
		{"cdn.example.com", "img//cat.png", false, "http://cdn.example.com/img//cat.png"},
		{"https://cdn.example.com", "cat.png", false, "http://cdn.example.com/cat.png"},
		{"cdn.example.com", "img/cat.png", true, "![cat.png](http://cdn.example.com/img/cat.png)"},
	}
	for _, tt := range tests {
		if got := FormatLink(tt.domain, tt.key, tt.markdown); got != tt.want {
			t.Errorf("FormatLink(%q, %q, %v) = %q, want %q", tt.domain, tt.key, tt.markdown, got, tt.want)
		}
	}
}
