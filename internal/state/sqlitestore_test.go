package state

import (
	"testing"
)

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	st := New()
	st.MarkStarted("run12345")
	st.MarkStepCompleted(1, map[string]any{"languages": float64(42)})
	st.SetPartial(2, map[string]any{"done": []any{"ar", "fr"}})
	st.LogError(2, "dewiki: permanent: bad query")

	if err := store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != "run12345" {
		t.Errorf("RunID = %q", loaded.RunID)
	}
	if !loaded.IsStepCompleted(1) {
		t.Error("step 1 should be completed")
	}
	if loaded.RunStartedAt == nil {
		t.Error("RunStartedAt lost")
	}

	var cursor struct {
		Done []string `json:"done"`
	}
	if err := DecodeInto(loaded.PartialProgress[2], &cursor); err != nil {
		t.Fatalf("DecodeInto: %v", err)
	}
	if len(cursor.Done) != 2 || cursor.Done[1] != "fr" {
		t.Errorf("cursor = %+v", cursor)
	}

	if len(loaded.ErrorLog) != 1 || loaded.ErrorLog[0].Message != "dewiki: permanent: bad query" {
		t.Errorf("error log = %+v", loaded.ErrorLog)
	}
}

func TestSQLiteStore_EmptyLoad(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.CompletedSteps) != 0 || len(st.ErrorLog) != 0 {
		t.Errorf("expected empty state, got %+v", st)
	}
}

func TestSQLiteStore_SaveReplacesPriorState(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	st := New()
	st.SetPartial(2, map[string]any{"done": []any{"ar"}})
	if err := store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	st.MarkStepCompleted(2, "final")
	if err := store.Save(st); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := loaded.PartialProgress[2]; ok {
		t.Error("partial progress should be gone after step completion")
	}
	if !loaded.IsStepCompleted(2) {
		t.Error("step 2 should be completed")
	}
}

func TestSQLiteStore_Reset(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	st := New()
	st.MarkStepCompleted(1, "a")
	st.MarkStepCompleted(2, "b")
	st.MarkStepCompleted(3, "c")
	st.LogError(3, "late failure")
	if err := store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	pruned, err := store.Reset(2)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := pruned.CompletedSteps; len(got) != 1 || got[0] != 1 {
		t.Errorf("CompletedSteps = %v, want [1]", got)
	}
	if len(pruned.ErrorLog) != 0 {
		t.Errorf("error entries for reset steps should be dropped: %+v", pruned.ErrorLog)
	}
}

func TestSQLiteStore_RunHistory(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	if err := store.RecordRunStart("run-a"); err != nil {
		t.Fatalf("RecordRunStart: %v", err)
	}
	if err := store.RecordRunEnd("run-a", "success", "3 languages, 0 failed"); err != nil {
		t.Fatalf("RecordRunEnd: %v", err)
	}

	runs, err := store.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Status != "success" {
		t.Errorf("status = %q", runs[0].Status)
	}
	if runs[0].CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}
