package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/cardstack/internal/model"
	"github.com/verte-zerg/cardstack/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "cardstack.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		trace := model.Trace{
			StartedAt:  start,
			EndedAt:    start.Add(30 * time.Second),
			Deck:       []string{"a", "b", "c"},
			Seed:       int64(i),
			CellWidth:  8,
			CellHeight: 16,
			Throws:     1,
			SnapBacks:  1,
		}
		events := []model.TraceEvent{
			{Seq: 0, Kind: "down", CardID: 1},
			{Seq: 1, Kind: "up", CardID: 1, VX: 0.9},
			{Seq: 2, Kind: "throw", CardID: 1, VX: 0.9},
			{Seq: 3, Kind: "down", CardID: 2},
			{Seq: 4, Kind: "up", CardID: 2, VX: 0.1},
			{Seq: 5, Kind: "snapback", CardID: 2},
		}
		id, err := st.InsertTrace(ctx, trace, events)
		if err != nil {
			t.Fatalf("insert trace: %v", err)
		}
		ids = append(ids, id)
	}

	report, err := BuildReport(ctx, st, model.TraceFilter{Last: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(report.Traces))
	}
	if report.Traces[0].ID != ids[1] || report.Traces[1].ID != ids[2] {
		t.Fatalf("unexpected trace ids: %+v", report.Traces)
	}
	if len(report.Releases) != 4 {
		t.Fatalf("expected 4 releases, got %d", len(report.Releases))
	}
	if report.Summary.Throws != 2 || report.Summary.SnapBacks != 2 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if report.Summary.ThrowRate != 0.5 {
		t.Fatalf("expected throw rate 0.5, got %v", report.Summary.ThrowRate)
	}
}
