// Package report renders the task registry for operators.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"tasking/pkg/task"
)

// Formats lists the supported export formats.
var Formats = []string{"json", "csv", "pdf"}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "text/csv"
	case "pdf":
		return "application/pdf"
	}
	return "application/json"
}

// Exporter snapshots a task store.
type Exporter struct {
	tasks task.Store
	now   func() time.Time
}

func NewExporter(tasks task.Store) *Exporter {
	return &Exporter{tasks: tasks, now: time.Now}
}

// Snapshot returns every present task in ID order. Tasks removed between the
// ID listing and their lookup are skipped.
func (e *Exporter) Snapshot(ctx context.Context) ([]task.Task, error) {
	ids, err := e.tasks.IDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]task.Task, 0, len(ids))
	for _, id := range ids {
		t, err := e.tasks.Get(ctx, id)
		if errors.Is(err, task.ErrTaskDoesNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// Export renders the registry as json, csv or pdf.
func (e *Exporter) Export(ctx context.Context, format string) ([]byte, error) {
	all, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(all, "", "  ")
	case "csv":
		var b bytes.Buffer
		w := csv.NewWriter(&b)
		_ = w.Write([]string{"id", "owner", "created_at"})
		for _, t := range all {
			_ = w.Write([]string{
				strconv.FormatUint(uint64(t.ID), 10),
				t.Owner,
				strconv.FormatUint(t.CreatedAt, 10),
			})
		}
		w.Flush()
		return b.Bytes(), w.Error()
	case "pdf":
		return e.pdf(all)
	}
	return nil, fmt.Errorf("unknown format %s", format)
}

func (e *Exporter) pdf(all []task.Task) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Task Registry")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(40, 6, fmt.Sprintf("%d tasks, generated %s", len(all), e.now().UTC().Format(time.RFC3339)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 7, "ID", "1", 0, "L", false, 0, "")
	pdf.CellFormat(110, 7, "Owner", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, "Created at", "1", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, t := range all {
		pdf.CellFormat(30, 6, strconv.FormatUint(uint64(t.ID), 10), "1", 0, "L", false, 0, "")
		pdf.CellFormat(110, 6, t.Owner, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, strconv.FormatUint(t.CreatedAt, 10), "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
