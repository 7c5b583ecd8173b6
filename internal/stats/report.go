// Package stats contains trace summaries and reporting.
package stats

import (
	"context"

	"github.com/verte-zerg/cardstack/internal/model"
	"github.com/verte-zerg/cardstack/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Traces   []model.Trace
	Releases []model.Release
	Summary  Summary
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, filter model.TraceFilter) (Report, error) {
	traces, err := st.ListTraces(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	ids := make([]string, len(traces))
	for i, tr := range traces {
		ids[i] = tr.ID
	}
	releases, err := st.ListReleases(ctx, ids)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Traces:   traces,
		Releases: releases,
		Summary:  Summarize(traces, releases),
	}, nil
}
