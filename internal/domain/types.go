package domain

import "time"

type Operation string

const (
	OpTranslate Operation = "translate"
	OpReplace   Operation = "replace"
	OpEnhance   Operation = "enhance"
	OpRecolor   Operation = "recolor"
	OpUndo      Operation = "undo"
	OpUnclear   Operation = "unclear"
)

type ScopeKind string

const (
	ScopeDocument     ScopeKind = "document"
	ScopeCurrentSlide ScopeKind = "current_slide"
	ScopeSelection    ScopeKind = "selection"
)

// ParseScopeKind accepts the wire names plus a few loose aliases the model
// tends to emit. Unknown values fall back to the whole document.
func ParseScopeKind(raw string) ScopeKind {
	switch raw {
	case "current_slide", "current", "slide", "this_slide":
		return ScopeCurrentSlide
	case "selection", "selected":
		return ScopeSelection
	default:
		return ScopeDocument
	}
}

type ScopeDescriptor struct {
	Kind       ScopeKind `json:"kind"`
	SlideID    string    `json:"slideId,omitempty"`
	ElementIDs []string  `json:"elementIds,omitempty"`
}

func (s ScopeDescriptor) Describe() string {
	switch s.Kind {
	case ScopeCurrentSlide:
		return "current slide"
	case ScopeSelection:
		return "selected elements"
	default:
		return "all slides"
	}
}

type ContextSummary struct {
	Title      string `json:"title"`
	SlideCount int    `json:"slideCount"`
	Selection  string `json:"selection"`
}

type TaskStatus string

const (
	StatusSuccess TaskStatus = "success"
	StatusSkipped TaskStatus = "skipped"
	StatusFailed  TaskStatus = "failed"
)

type DiffStats struct {
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
}

type ElementOutcome struct {
	Locator Locator    `json:"locator"`
	Before  string     `json:"before"`
	After   string     `json:"after,omitempty"`
	Status  TaskStatus `json:"status"`
	Reason  string     `json:"reason,omitempty"`
	Error   string     `json:"error,omitempty"`
	Diff    *DiffStats `json:"diff,omitempty"`
}

type OperationResult struct {
	Operation        Operation        `json:"operation"`
	ScopeDescription string           `json:"scopeDescription"`
	TotalConsidered  int              `json:"totalConsidered"`
	TotalMutated     int              `json:"totalMutated"`
	Outcomes         []ElementOutcome `json:"outcomes"`
	Cancelled        bool             `json:"cancelled,omitempty"`
	Duration         time.Duration    `json:"durationNs"`
}

// Failed counts outcomes recorded as failed.
func (r OperationResult) Failed() int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.Status == StatusFailed {
			n++
		}
	}
	return n
}

// SlidesTouched counts the distinct slides with at least one mutated element.
func (r OperationResult) SlidesTouched() int {
	seen := make(map[string]struct{})
	for _, outcome := range r.Outcomes {
		if outcome.Status == StatusSuccess {
			seen[outcome.Locator.SlideID] = struct{}{}
		}
	}
	return len(seen)
}

type CapturedElement struct {
	Locator     Locator       `json:"locator"`
	TextBefore  string        `json:"textBefore"`
	StyleBefore StyleSnapshot `json:"styleBefore"`
}

type Snapshot struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	OperationLabel string            `json:"operationLabel"`
	Elements       []CapturedElement `json:"elements"`
}

type RevertResult struct {
	SnapshotID    string    `json:"snapshotId"`
	Label         string    `json:"label"`
	Restored      int       `json:"restored"`
	Skipped       []Locator `json:"skipped,omitempty"`
	Partial       bool      `json:"partial"`
	StepsReverted int       `json:"stepsReverted"`
}

type RouteRequest struct {
	Utterance          string   `json:"utterance"`
	DocumentID         string   `json:"documentId"`
	CurrentSlideID     string   `json:"currentSlideId"`
	SelectedElementIDs []string `json:"selectedElementIds"`
}

type RouteResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	CanUndo   bool             `json:"canUndo"`
	Directive *Directive       `json:"directive,omitempty"`
	Result    *OperationResult `json:"result,omitempty"`
	Metadata  Metadata         `json:"metadata"`
}

type RevertRequest struct {
	DocumentID string `json:"documentId"`
	SnapshotID string `json:"snapshotId"`
}

type RevertResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Result   *RevertResult `json:"result,omitempty"`
	Metadata Metadata      `json:"metadata"`
}

type SnapshotSummary struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	OperationLabel string    `json:"operationLabel"`
	Elements       int       `json:"elements"`
}

type SnapshotListResponse struct {
	SessionID string            `json:"sessionId"`
	Snapshots []SnapshotSummary `json:"snapshots"`
}

type Metadata struct {
	Provider        string `json:"provider"`
	SessionID       string `json:"sessionId,omitempty"`
	RequestID       string `json:"requestId,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type APIErrorResponse struct {
	Error APIError `json:"error"`
}

type RuntimeCapabilities struct {
	RequestedProvider string `json:"requestedProvider"`
	ActiveProvider    string `json:"activeProvider"`
	ProviderFallback  bool   `json:"providerFallback"`
	Document          string `json:"document"`
	Translator        string `json:"translator"`
	UndoDepth         int    `json:"undoDepth"`
}

type FeatureFlags struct {
	Operations      []Operation    `json:"operations"`
	EnhanceStyles   []EnhanceStyle `json:"enhanceStyles"`
	HeuristicOnly   bool           `json:"heuristicOnly"`
	PersistentUndo  bool           `json:"persistentUndo"`
	GoogleSlidesAPI bool           `json:"googleSlidesApi"`
}

type CapabilitiesResponse struct {
	Runtime  RuntimeCapabilities `json:"runtime"`
	Features FeatureFlags        `json:"features"`
}

type ConnectorAuthStartResponse struct {
	Connector      string `json:"connector"`
	SessionKey     string `json:"sessionKey"`
	AuthURL        string `json:"authUrl"`
	StateExpiresAt string `json:"stateExpiresAt"`
}

type ConnectorAuthCallbackResponse struct {
	Connector     string `json:"connector"`
	SessionKey    string `json:"sessionKey"`
	Authenticated bool   `json:"authenticated"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}

type AgentRole string

const (
	RoleSnapshot  AgentRole = "snapshot"
	RoleExecutor  AgentRole = "executor"
	RoleReverter  AgentRole = "reverter"
	RoleResponder AgentRole = "responder"
)

type PlanStep struct {
	ID     string    `json:"id"`
	Role   AgentRole `json:"role"`
	Action string    `json:"action"`
}
