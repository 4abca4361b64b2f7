package slides

import (
	"context"
	"errors"
	"testing"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"google.golang.org/api/googleapi"
	slidesapi "google.golang.org/api/slides/v1"
)

type fakeGoogleSlidesClient struct {
	presentation *slidesapi.Presentation
	getErr       error
	batchErr     error
	batches      []*slidesapi.BatchUpdatePresentationRequest
}

func (f *fakeGoogleSlidesClient) GetPresentation(_ context.Context, _ string) (*slidesapi.Presentation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.presentation, nil
}

func (f *fakeGoogleSlidesClient) GetPage(_ context.Context, _ string, pageID string) (*slidesapi.Page, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, page := range f.presentation.Slides {
		if page.ObjectId == pageID {
			return page, nil
		}
	}
	return nil, &googleapi.Error{Code: 404, Message: "page not found"}
}

func (f *fakeGoogleSlidesClient) BatchUpdate(_ context.Context, _ string, req *slidesapi.BatchUpdatePresentationRequest) (*slidesapi.BatchUpdatePresentationResponse, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	f.batches = append(f.batches, req)
	return &slidesapi.BatchUpdatePresentationResponse{}, nil
}

func textContent(text string, style *slidesapi.TextStyle) *slidesapi.TextContent {
	return &slidesapi.TextContent{
		TextElements: []*slidesapi.TextElement{
			{ParagraphMarker: &slidesapi.ParagraphMarker{}},
			{TextRun: &slidesapi.TextRun{Content: text + "\n", Style: style}},
		},
	}
}

func samplePresentation() *slidesapi.Presentation {
	return &slidesapi.Presentation{
		Title: "Roadmap",
		Slides: []*slidesapi.Page{
			{
				ObjectId: "p1",
				PageElements: []*slidesapi.PageElement{
					{ObjectId: "title", Shape: &slidesapi.Shape{Text: textContent("Hello", &slidesapi.TextStyle{
						Bold:       true,
						FontFamily: "Arial",
						FontSize:   &slidesapi.Dimension{Magnitude: 24, Unit: "PT"},
						ForegroundColor: &slidesapi.OptionalColor{OpaqueColor: &slidesapi.OpaqueColor{
							RgbColor: &slidesapi.RgbColor{Red: 1},
						}},
					})}},
					{ObjectId: "picture", Image: &slidesapi.Image{}},
					{ElementGroup: &slidesapi.Group{Children: []*slidesapi.PageElement{
						{ObjectId: "grouped", Shape: &slidesapi.Shape{Text: textContent("In a group", nil)}},
					}}},
				},
			},
			{
				ObjectId: "p2",
				PageElements: []*slidesapi.PageElement{
					{ObjectId: "table", Table: &slidesapi.Table{TableRows: []*slidesapi.TableRow{
						{TableCells: []*slidesapi.TableCell{
							{Text: textContent("A1", nil)},
							{},
						}},
					}}},
				},
			},
		},
	}
}

func newTestGoogleDocument(client *fakeGoogleSlidesClient) *GoogleSlidesDocument {
	return &GoogleSlidesDocument{
		presentationID: "deck-1",
		newClient: func(_ context.Context) (googleSlidesClient, error) {
			return client, nil
		},
	}
}

func TestGoogleSlidesListElements(t *testing.T) {
	doc := newTestGoogleDocument(&fakeGoogleSlidesClient{presentation: samplePresentation()})

	elements, err := doc.ListElements(context.Background(), domain.ScopeDescriptor{Kind: domain.ScopeDocument})
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(elements) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(elements))
	}
	if elements[0].Text != "Hello" {
		t.Fatalf("expected trailing newline to be trimmed, got %q", elements[0].Text)
	}
	if elements[0].Style.Bold == nil || !*elements[0].Style.Bold {
		t.Fatalf("expected bold style, got %+v", elements[0].Style)
	}
	if elements[0].Style.Foreground.Kind != domain.ColorRGB {
		t.Fatalf("expected rgb foreground, got %+v", elements[0].Style.Foreground)
	}
	if elements[1].Locator.ElementID != "grouped" || elements[1].Locator.ElementIndex != 2 {
		t.Fatalf("unexpected grouped locator: %+v", elements[1].Locator)
	}
	if !elements[3].Locator.IsCell || elements[3].Locator.Column != 1 || elements[3].Text != "" {
		t.Fatalf("unexpected empty cell element: %+v", elements[3])
	}
}

func TestGoogleSlidesSetTextIssuesDeleteAndInsert(t *testing.T) {
	client := &fakeGoogleSlidesClient{presentation: samplePresentation()}
	doc := newTestGoogleDocument(client)

	err := doc.SetText(context.Background(), domain.Locator{SlideID: "p1", ElementID: "title"}, "Bonjour")
	if err != nil {
		t.Fatalf("set text returned error: %v", err)
	}
	if len(client.batches) != 1 || len(client.batches[0].Requests) != 2 {
		t.Fatalf("expected one batch with two requests, got %+v", client.batches)
	}
	deleteReq := client.batches[0].Requests[0].DeleteText
	if deleteReq == nil || deleteReq.TextRange.Type != "ALL" || deleteReq.ObjectId != "title" {
		t.Fatalf("unexpected delete request: %+v", deleteReq)
	}
	insertReq := client.batches[0].Requests[1].InsertText
	if insertReq == nil || insertReq.Text != "Bonjour" {
		t.Fatalf("unexpected insert request: %+v", insertReq)
	}
}

func TestGoogleSlidesSetTextOnEmptyCellSkipsDelete(t *testing.T) {
	client := &fakeGoogleSlidesClient{presentation: samplePresentation()}
	doc := newTestGoogleDocument(client)

	loc := domain.Locator{SlideID: "p2", ElementID: "table", IsCell: true, Row: 0, Column: 1}
	if err := doc.SetText(context.Background(), loc, "B1"); err != nil {
		t.Fatalf("set text returned error: %v", err)
	}
	requests := client.batches[0].Requests
	if len(requests) != 1 || requests[0].InsertText == nil {
		t.Fatalf("expected a single insert, got %+v", requests)
	}
	if requests[0].InsertText.CellLocation == nil || requests[0].InsertText.CellLocation.ColumnIndex != 1 {
		t.Fatalf("expected cell location, got %+v", requests[0].InsertText.CellLocation)
	}
}

func TestGoogleSlidesSetStyleUsesFieldMask(t *testing.T) {
	client := &fakeGoogleSlidesClient{presentation: samplePresentation()}
	doc := newTestGoogleDocument(client)

	style := domain.StyleSnapshot{Bold: domain.Bool(false), Foreground: domain.ThemeColor("DARK1")}
	if err := doc.SetStyle(context.Background(), domain.Locator{SlideID: "p1", ElementID: "title"}, style); err != nil {
		t.Fatalf("set style returned error: %v", err)
	}

	update := client.batches[0].Requests[0].UpdateTextStyle
	if update == nil {
		t.Fatalf("expected update text style request")
	}
	if update.Fields != "bold,foregroundColor" {
		t.Fatalf("unexpected field mask %q", update.Fields)
	}
	if update.Style.ForegroundColor.OpaqueColor.ThemeColor != "DARK1" {
		t.Fatalf("unexpected theme color: %+v", update.Style.ForegroundColor)
	}
}

func TestGoogleSlidesSetStyleResetsInheritedForeground(t *testing.T) {
	client := &fakeGoogleSlidesClient{presentation: samplePresentation()}
	doc := newTestGoogleDocument(client)

	style := domain.StyleSnapshot{FontFamily: "Roboto"}
	if err := doc.SetStyle(context.Background(), domain.Locator{SlideID: "p1", ElementID: "title"}, style); err != nil {
		t.Fatalf("set style returned error: %v", err)
	}

	update := client.batches[0].Requests[0].UpdateTextStyle
	if update.Fields != "fontFamily,foregroundColor" {
		t.Fatalf("unexpected field mask %q", update.Fields)
	}
	if update.Style.ForegroundColor != nil {
		t.Fatalf("expected foreground to be cleared, got %+v", update.Style.ForegroundColor)
	}
}

func TestGoogleSlidesMissingElementIsNotFound(t *testing.T) {
	doc := newTestGoogleDocument(&fakeGoogleSlidesClient{presentation: samplePresentation()})

	_, err := doc.GetText(context.Background(), domain.Locator{SlideID: "p1", ElementID: "deleted"})
	if !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}

	_, err = doc.GetText(context.Background(), domain.Locator{SlideID: "gone", ElementID: "title"})
	if !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound for deleted slide, got %v", err)
	}
}

func TestGoogleSlidesMapsAccessErrors(t *testing.T) {
	doc := newTestGoogleDocument(&fakeGoogleSlidesClient{getErr: &googleapi.Error{Code: 403, Message: "forbidden"}})

	_, err := doc.ListElements(context.Background(), domain.ScopeDescriptor{})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if !IsAccessError(err) {
		t.Fatalf("expected access error classification")
	}
}

func TestGoogleSlidesSummaryAndSelection(t *testing.T) {
	doc := newTestGoogleDocument(&fakeGoogleSlidesClient{presentation: samplePresentation()})

	summary, err := doc.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary returned error: %v", err)
	}
	if summary.Title != "Roadmap" || summary.SlideCount != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	selection, err := doc.SelectionScope(context.Background())
	if err != nil {
		t.Fatalf("selection returned error: %v", err)
	}
	if selection.SlideID != "p1" {
		t.Fatalf("expected first slide as current, got %q", selection.SlideID)
	}
}

func TestGoogleSlidesOpenerRequiresCredentials(t *testing.T) {
	opener := NewGoogleSlidesOpener(GoogleSlidesConfig{}, nil)

	doc, err := opener.Open(context.Background(), OpenRequest{DocumentID: "deck-1"})
	if err != nil {
		t.Fatalf("open returned error: %v", err)
	}
	_, err = doc.Summary(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
