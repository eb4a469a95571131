package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"

	"tasking/pkg/task"
)

func seededStore(t *testing.T) *task.MemStore {
	t.Helper()
	store := task.NewMemStore()
	for _, tk := range []task.Task{
		{ID: 9, Owner: "bob", CreatedAt: 4},
		{ID: 2, Owner: "alice", CreatedAt: 3},
	} {
		if err := store.Insert(context.Background(), &tk); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	return store
}

func TestExportJSON(t *testing.T) {
	out, err := NewExporter(seededStore(t)).Export(context.Background(), "json")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var got []task.Task
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[0].Owner != "alice" || got[1].CreatedAt != 4 {
		t.Errorf("json export = %+v", got)
	}
}

func TestExportCSV(t *testing.T) {
	out, err := NewExporter(seededStore(t)).Export(context.Background(), "CSV")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "id" || rows[1][0] != "2" || rows[2][1] != "bob" || rows[2][2] != "4" {
		t.Errorf("csv export = %v", rows)
	}
}

func TestExportPDF(t *testing.T) {
	out, err := NewExporter(seededStore(t)).Export(context.Background(), "pdf")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("pdf export starts with %q", out[:min(len(out), 8)])
	}
}

func TestExportEmptyAndUnknown(t *testing.T) {
	e := NewExporter(task.NewMemStore())
	out, err := e.Export(context.Background(), "json")
	if err != nil || string(out) != "[]" {
		t.Errorf("empty json export = %q, %v", out, err)
	}
	if _, err := e.Export(context.Background(), "xml"); err == nil {
		t.Error("unknown format should fail")
	}
}
