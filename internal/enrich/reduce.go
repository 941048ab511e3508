package enrich

import (
	"time"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/source"
)

// The orchestrator applies pure reducers to the prospect record, one per
// transition, so every state the run can be observed in is an explicit
// value rather than hidden mutation.

// beginRun marks the prospect in progress and resets the per-source status
// map. Payload slots are left untouched: a re-run must not discard data
// merged by earlier runs until a new fetch actually succeeds.
func beginRun(p model.Prospect) model.Prospect {
	p.EnrichmentStatus = model.EnrichmentInProgress
	p.Sources = model.NewPendingSources()
	return p
}

// markSourceInProgress records that a source's fetch has started.
func markSourceInProgress(p model.Prospect, key model.SourceKey) model.Prospect {
	p.Sources = cloneSources(p.Sources)
	p.Sources[key] = model.SourceInProgress
	return p
}

// markSourceSkipped records a source that will not be called this run.
func markSourceSkipped(p model.Prospect, key model.SourceKey) model.Prospect {
	p.Sources = cloneSources(p.Sources)
	p.Sources[key] = model.SourceSkipped
	return p
}

// applySourceResult records a source's terminal status and, on success,
// merges its payload into the slot it owns. Failed or circuit-open results
// leave the slot exactly as it was.
func applySourceResult(p model.Prospect, key model.SourceKey, res source.Result) model.Prospect {
	p.Sources = cloneSources(p.Sources)
	p.Sources[key] = res.Status

	if res.Status != model.SourceComplete || res.Data == nil {
		return p
	}

	switch key {
	case model.SourceContactOut:
		if payload, ok := res.Data.(*model.ContactPayload); ok {
			p.Contact = payload
		}
	case model.SourceExa:
		if payload, ok := res.Data.(*model.WebIntelPayload); ok {
			p.WebIntel = payload
		}
	case model.SourceSEC:
		if payload, ok := res.Data.(*model.FilingsPayload); ok {
			p.Filings = payload
		}
	case model.SourceClaude:
		if payload, ok := res.Data.(*model.SummaryPayload); ok {
			p.Summary = payload
		}
	}
	return p
}

// finalizeRun closes the run. Partial results are the design: the lifecycle
// completes as long as every source reached a terminal state, however it
// got there.
func finalizeRun(p model.Prospect, now time.Time) model.Prospect {
	p.EnrichmentStatus = model.EnrichmentComplete
	t := now.UTC()
	p.LastEnrichedAt = &t
	return p
}

// failRun marks the lifecycle failed after an infrastructure error,
// preserving whatever source statuses were already recorded.
func failRun(p model.Prospect) model.Prospect {
	p.EnrichmentStatus = model.EnrichmentFailed
	return p
}

func cloneSources(m model.SourceStatusMap) model.SourceStatusMap {
	out := make(model.SourceStatusMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
