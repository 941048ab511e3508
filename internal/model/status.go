package model

// SourceKey identifies one external enrichment provider.
type SourceKey string

const (
	SourceContactOut SourceKey = "contactout"
	SourceExa        SourceKey = "exa"
	SourceSEC        SourceKey = "sec"
	SourceClaude     SourceKey = "claude"
)

// AllSources lists the canonical source keys in step order.
var AllSources = []SourceKey{SourceContactOut, SourceExa, SourceSEC, SourceClaude}

// SourceStatus is the per-source outcome within one enrichment run.
type SourceStatus string

const (
	SourcePending     SourceStatus = "pending"
	SourceInProgress  SourceStatus = "in_progress"
	SourceComplete    SourceStatus = "complete"
	SourceFailed      SourceStatus = "failed"
	SourceSkipped     SourceStatus = "skipped"
	SourceCircuitOpen SourceStatus = "circuit_open"
)

// Terminal reports whether the status is a per-run terminal state.
func (s SourceStatus) Terminal() bool {
	switch s {
	case SourceComplete, SourceFailed, SourceSkipped, SourceCircuitOpen:
		return true
	default:
		return false
	}
}

// SourceStatusMap maps each source to its status for the current run.
// Once a run has started the map contains all four canonical keys.
type SourceStatusMap map[SourceKey]SourceStatus

// NewPendingSources returns a status map with every source pending.
func NewPendingSources() SourceStatusMap {
	m := make(SourceStatusMap, len(AllSources))
	for _, k := range AllSources {
		m[k] = SourcePending
	}
	return m
}

// AllTerminal reports whether every canonical source has reached a terminal
// state. Missing keys count as non-terminal.
func (m SourceStatusMap) AllTerminal() bool {
	for _, k := range AllSources {
		s, ok := m[k]
		if !ok || !s.Terminal() {
			return false
		}
	}
	return true
}

// legacyStatusAliases maps historical bare-string status values to the
// current enum. Older records stored "ok"/"error" before statuses were typed.
var legacyStatusAliases = map[string]SourceStatus{
	"ok":      SourceComplete,
	"done":    SourceComplete,
	"error":   SourceFailed,
	"errored": SourceFailed,
	"open":    SourceCircuitOpen,
}

// NormalizeSourceStatuses repairs a status map read from storage: legacy
// aliases are mapped to current values, unknown values become failed, and
// missing canonical keys are filled with pending. Called once at the read
// boundary; the store never writes legacy shapes.
func NormalizeSourceStatuses(raw map[SourceKey]string) SourceStatusMap {
	m := make(SourceStatusMap, len(AllSources))
	for k, v := range raw {
		switch s := SourceStatus(v); s {
		case SourcePending, SourceInProgress, SourceComplete, SourceFailed, SourceSkipped, SourceCircuitOpen:
			m[k] = s
		default:
			if alias, ok := legacyStatusAliases[v]; ok {
				m[k] = alias
			} else {
				m[k] = SourceFailed
			}
		}
	}
	for _, k := range AllSources {
		if _, ok := m[k]; !ok {
			m[k] = SourcePending
		}
	}
	return m
}
