package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/slides"
)

const DefaultUndoDepth = 10

var (
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// UndoStack holds the snapshots taken before each mutating operation,
// newest last. Pushing past the depth evicts the oldest entry.
type UndoStack struct {
	mu        sync.Mutex
	depth     int
	snapshots []domain.Snapshot
	now       func() time.Time
}

func NewUndoStack(depth int) *UndoStack {
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &UndoStack{depth: depth, now: time.Now}
}

func (s *UndoStack) Depth() int {
	return s.depth
}

func (s *UndoStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// Snapshot captures text and style of every element in scope and pushes the
// capture under label.
func (s *UndoStack) Snapshot(ctx context.Context, doc slides.Document, scope domain.ScopeDescriptor, label string) (string, error) {
	elements, err := doc.ListElements(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", scope.Describe(), err)
	}

	snapshot := domain.Snapshot{
		ID:             uuid.NewString(),
		OperationLabel: label,
		Elements:       make([]domain.CapturedElement, 0, len(elements)),
	}
	for _, element := range elements {
		snapshot.Elements = append(snapshot.Elements, domain.CapturedElement{
			Locator:     element.Locator,
			TextBefore:  element.Text,
			StyleBefore: element.Style,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot.Timestamp = s.now().UTC()
	s.snapshots = append(s.snapshots, snapshot)
	if overflow := len(s.snapshots) - s.depth; overflow > 0 {
		s.snapshots = append([]domain.Snapshot(nil), s.snapshots[overflow:]...)
	}
	return snapshot.ID, nil
}

// Revert rolls the document back to the state captured by snapshot id, or
// by the newest snapshot when id is empty. Newer snapshots are undone first
// and every snapshot from the target onwards is dropped. Elements that no
// longer resolve are reported in Skipped.
func (s *UndoStack) Revert(ctx context.Context, doc slides.Document, id string) (domain.RevertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) == 0 {
		return domain.RevertResult{}, ErrNothingToUndo
	}

	index := len(s.snapshots) - 1
	if id != "" {
		index = s.indexLocked(id)
		if index < 0 {
			return domain.RevertResult{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
	}

	target := s.snapshots[index]
	result := domain.RevertResult{
		SnapshotID:    target.ID,
		Label:         target.OperationLabel,
		StepsReverted: len(s.snapshots) - index,
	}

	skipped := make(map[string]bool)
	for i := len(s.snapshots) - 1; i >= index; i-- {
		for _, captured := range s.snapshots[i].Elements {
			if err := restore(ctx, doc, captured); err != nil {
				key := captured.Locator.Key()
				if !skipped[key] {
					skipped[key] = true
					result.Skipped = append(result.Skipped, captured.Locator)
				}
				continue
			}
			if i == index {
				result.Restored++
			}
		}
	}
	result.Partial = len(result.Skipped) > 0

	s.snapshots = s.snapshots[:index]
	return result, nil
}

func restore(ctx context.Context, doc slides.Document, captured domain.CapturedElement) error {
	if err := doc.SetText(ctx, captured.Locator, captured.TextBefore); err != nil {
		return err
	}
	return doc.SetStyle(ctx, captured.Locator, captured.StyleBefore)
}

// Discard drops a snapshot whose operation never touched the document.
func (s *UndoStack) Discard(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexLocked(id)
	if index < 0 {
		return false
	}
	s.snapshots = append(s.snapshots[:index], s.snapshots[index+1:]...)
	return true
}

// List summarises snapshots newest first.
func (s *UndoStack) List() []domain.SnapshotSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]domain.SnapshotSummary, 0, len(s.snapshots))
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		snapshot := s.snapshots[i]
		summaries = append(summaries, domain.SnapshotSummary{
			ID:             snapshot.ID,
			Timestamp:      snapshot.Timestamp,
			OperationLabel: snapshot.OperationLabel,
			Elements:       len(snapshot.Elements),
		})
	}
	return summaries
}

func (s *UndoStack) indexLocked(id string) int {
	for i, snapshot := range s.snapshots {
		if snapshot.ID == id {
			return i
		}
	}
	return -1
}

func (s *UndoStack) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.snapshots)
}

// UnmarshalJSON replaces the stack contents, keeping only the newest
// entries that fit the depth.
func (s *UndoStack) UnmarshalJSON(data []byte) error {
	var snapshots []domain.Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth <= 0 {
		s.depth = DefaultUndoDepth
	}
	if s.now == nil {
		s.now = time.Now
	}
	if overflow := len(snapshots) - s.depth; overflow > 0 {
		snapshots = snapshots[overflow:]
	}
	s.snapshots = snapshots
	return nil
}
