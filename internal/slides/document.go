package slides

import (
	"context"
	"errors"
	"time"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/metrics"
)

var (
	ErrNoDocument      = errors.New("no open presentation")
	ErrElementNotFound = errors.New("slide element not found")
	ErrUnauthorized    = errors.New("presentation access unauthorized")
	ErrForbidden       = errors.New("presentation access forbidden")
	ErrUnavailable     = errors.New("presentation service unavailable")
)

// Document is the mutable text-bearing element store behind one
// presentation. Elements are addressed by Locator and always read fresh.
type Document interface {
	Name() string
	ListElements(ctx context.Context, scope domain.ScopeDescriptor) ([]domain.TextElement, error)
	GetText(ctx context.Context, loc domain.Locator) (string, error)
	SetText(ctx context.Context, loc domain.Locator, text string) error
	GetStyle(ctx context.Context, loc domain.Locator) (domain.StyleSnapshot, error)
	SetStyle(ctx context.Context, loc domain.Locator, style domain.StyleSnapshot) error
	SelectionScope(ctx context.Context) (domain.ScopeDescriptor, error)
	Summary(ctx context.Context) (domain.ContextSummary, error)
}

// OpenRequest identifies a presentation and the caller's view of it. The
// Slides API exposes no selection, so the client reports it.
type OpenRequest struct {
	SessionKey         string
	DocumentID         string
	CurrentSlideID     string
	SelectedElementIDs []string
}

func (r OpenRequest) selection() domain.ScopeDescriptor {
	switch {
	case len(r.SelectedElementIDs) > 0:
		return domain.ScopeDescriptor{
			Kind:       domain.ScopeSelection,
			SlideID:    r.CurrentSlideID,
			ElementIDs: append([]string(nil), r.SelectedElementIDs...),
		}
	case r.CurrentSlideID != "":
		return domain.ScopeDescriptor{Kind: domain.ScopeCurrentSlide, SlideID: r.CurrentSlideID}
	default:
		return domain.ScopeDescriptor{Kind: domain.ScopeDocument}
	}
}

// Opener hands out Documents per request.
type Opener interface {
	Name() string
	Open(ctx context.Context, req OpenRequest) (Document, error)
}

// ResolveScope turns a requested scope kind into a concrete descriptor using
// the document's selection. A selection scope with nothing selected narrows
// to the current slide; a current-slide scope without a known slide falls
// back to the first slide.
func ResolveScope(ctx context.Context, doc Document, kind domain.ScopeKind) (domain.ScopeDescriptor, error) {
	if kind == "" || kind == domain.ScopeDocument {
		return domain.ScopeDescriptor{Kind: domain.ScopeDocument}, nil
	}

	selection, err := doc.SelectionScope(ctx)
	if err != nil {
		return domain.ScopeDescriptor{}, err
	}

	if kind == domain.ScopeSelection && len(selection.ElementIDs) > 0 {
		return domain.ScopeDescriptor{
			Kind:       domain.ScopeSelection,
			SlideID:    selection.SlideID,
			ElementIDs: selection.ElementIDs,
		}, nil
	}
	return domain.ScopeDescriptor{Kind: domain.ScopeCurrentSlide, SlideID: selection.SlideID}, nil
}

// inScope reports whether loc belongs to scope.
func inScope(scope domain.ScopeDescriptor, loc domain.Locator) bool {
	switch scope.Kind {
	case domain.ScopeCurrentSlide:
		return loc.SlideID == scope.SlideID
	case domain.ScopeSelection:
		for _, id := range scope.ElementIDs {
			if id == loc.ElementID {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func observeDocumentCall(document string, operation string, call func() error) error {
	started := time.Now()
	err := call()

	status := "success"
	code := "none"
	if err != nil {
		status = "error"
		code = documentErrorCode(err)
	}
	metrics.RecordDocumentCall(document, operation, status, code, time.Since(started))
	return err
}

func documentErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoDocument):
		return "document_not_found"
	case errors.Is(err, ErrElementNotFound):
		return "element_not_found"
	case errors.Is(err, ErrUnauthorized):
		return "document_unauthorized"
	case errors.Is(err, ErrForbidden):
		return "document_forbidden"
	case errors.Is(err, ErrUnavailable):
		return "document_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "document_error"
	}
}

// IsAccessError reports whether err means the document itself cannot be
// reached, as opposed to a single element failing.
func IsAccessError(err error) bool {
	return errors.Is(err, ErrNoDocument) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnavailable)
}
