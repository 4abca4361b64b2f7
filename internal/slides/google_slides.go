package slides

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	slidesapi "google.golang.org/api/slides/v1"
)

type googleSlidesClient interface {
	GetPresentation(ctx context.Context, presentationID string) (*slidesapi.Presentation, error)
	GetPage(ctx context.Context, presentationID string, pageID string) (*slidesapi.Page, error)
	BatchUpdate(ctx context.Context, presentationID string, req *slidesapi.BatchUpdatePresentationRequest) (*slidesapi.BatchUpdatePresentationResponse, error)
}

type googleSlidesAPIClient struct {
	service *slidesapi.Service
}

func (c *googleSlidesAPIClient) GetPresentation(ctx context.Context, presentationID string) (*slidesapi.Presentation, error) {
	return c.service.Presentations.Get(presentationID).Context(ctx).Do()
}

func (c *googleSlidesAPIClient) GetPage(ctx context.Context, presentationID string, pageID string) (*slidesapi.Page, error) {
	return c.service.Presentations.Pages.Get(presentationID, pageID).Context(ctx).Do()
}

func (c *googleSlidesAPIClient) BatchUpdate(ctx context.Context, presentationID string, req *slidesapi.BatchUpdatePresentationRequest) (*slidesapi.BatchUpdatePresentationResponse, error) {
	return c.service.Presentations.BatchUpdate(presentationID, req).Context(ctx).Do()
}

// GoogleSlidesDocument is a Document over one Google Slides presentation.
// Shapes and table cells carry text; style is read from the first text run
// and written back across the whole range.
type GoogleSlidesDocument struct {
	presentationID string
	selection      domain.ScopeDescriptor
	newClient      func(ctx context.Context) (googleSlidesClient, error)
}

func (g *GoogleSlidesDocument) Name() string {
	return "google_slides"
}

func (g *GoogleSlidesDocument) ListElements(ctx context.Context, scope domain.ScopeDescriptor) ([]domain.TextElement, error) {
	var elements []domain.TextElement
	err := observeDocumentCall(g.Name(), "list_elements", func() error {
		presentation, err := g.presentation(ctx)
		if err != nil {
			return err
		}
		for slideIndex, page := range presentation.Slides {
			if page == nil {
				continue
			}
			for _, entry := range flattenPage(page) {
				loc := domain.Locator{
					SlideID:      page.ObjectId,
					SlideIndex:   slideIndex,
					ElementID:    entry.element.ObjectId,
					ElementIndex: entry.index,
				}
				if !inScope(scope, loc) {
					continue
				}
				elements = append(elements, elementTexts(loc, entry.element)...)
			}
		}
		return nil
	})
	return elements, err
}

func (g *GoogleSlidesDocument) GetText(ctx context.Context, loc domain.Locator) (string, error) {
	var text string
	err := observeDocumentCall(g.Name(), "get_text", func() error {
		content, _, err := g.resolve(ctx, loc)
		if err != nil {
			return err
		}
		text = plainText(content)
		return nil
	})
	return text, err
}

func (g *GoogleSlidesDocument) GetStyle(ctx context.Context, loc domain.Locator) (domain.StyleSnapshot, error) {
	var style domain.StyleSnapshot
	err := observeDocumentCall(g.Name(), "get_style", func() error {
		content, _, err := g.resolve(ctx, loc)
		if err != nil {
			return err
		}
		style = firstRunStyle(content)
		return nil
	})
	return style, err
}

func (g *GoogleSlidesDocument) SetText(ctx context.Context, loc domain.Locator, text string) error {
	return observeDocumentCall(g.Name(), "set_text", func() error {
		content, client, err := g.resolve(ctx, loc)
		if err != nil {
			return err
		}

		requests := make([]*slidesapi.Request, 0, 2)
		if plainText(content) != "" {
			requests = append(requests, &slidesapi.Request{
				DeleteText: &slidesapi.DeleteTextRequest{
					ObjectId:     loc.ElementID,
					CellLocation: cellLocation(loc),
					TextRange:    &slidesapi.Range{Type: "ALL"},
				},
			})
		}
		if text != "" {
			requests = append(requests, &slidesapi.Request{
				InsertText: &slidesapi.InsertTextRequest{
					ObjectId:       loc.ElementID,
					CellLocation:   cellLocation(loc),
					InsertionIndex: 0,
					Text:           text,
				},
			})
		}
		if len(requests) == 0 {
			return nil
		}

		_, err = client.BatchUpdate(ctx, g.presentationID, &slidesapi.BatchUpdatePresentationRequest{Requests: requests})
		return mapGoogleSlidesError(err)
	})
}

func (g *GoogleSlidesDocument) SetStyle(ctx context.Context, loc domain.Locator, style domain.StyleSnapshot) error {
	return observeDocumentCall(g.Name(), "set_style", func() error {
		content, client, err := g.resolve(ctx, loc)
		if err != nil {
			return err
		}
		if plainText(content) == "" {
			return nil
		}

		textStyle, fields := toTextStyle(style)
		if len(fields) == 0 {
			return nil
		}

		_, err = client.BatchUpdate(ctx, g.presentationID, &slidesapi.BatchUpdatePresentationRequest{
			Requests: []*slidesapi.Request{{
				UpdateTextStyle: &slidesapi.UpdateTextStyleRequest{
					ObjectId:     loc.ElementID,
					CellLocation: cellLocation(loc),
					TextRange:    &slidesapi.Range{Type: "ALL"},
					Style:        textStyle,
					Fields:       strings.Join(fields, ","),
				},
			}},
		})
		return mapGoogleSlidesError(err)
	})
}

func (g *GoogleSlidesDocument) SelectionScope(ctx context.Context) (domain.ScopeDescriptor, error) {
	selection := g.selection
	selection.ElementIDs = append([]string(nil), selection.ElementIDs...)
	if selection.SlideID != "" {
		return selection, nil
	}

	presentation, err := g.presentation(ctx)
	if err != nil {
		return domain.ScopeDescriptor{}, err
	}
	if len(presentation.Slides) == 0 || presentation.Slides[0] == nil {
		return domain.ScopeDescriptor{}, fmt.Errorf("%w: presentation has no slides", ErrNoDocument)
	}
	selection.SlideID = presentation.Slides[0].ObjectId
	return selection, nil
}

func (g *GoogleSlidesDocument) Summary(ctx context.Context) (domain.ContextSummary, error) {
	presentation, err := g.presentation(ctx)
	if err != nil {
		return domain.ContextSummary{}, err
	}
	title := strings.TrimSpace(presentation.Title)
	if title == "" {
		title = g.presentationID
	}
	return domain.ContextSummary{
		Title:      title,
		SlideCount: len(presentation.Slides),
		Selection:  describeSelection(g.selection),
	}, nil
}

func (g *GoogleSlidesDocument) presentation(ctx context.Context) (*slidesapi.Presentation, error) {
	if strings.TrimSpace(g.presentationID) == "" {
		return nil, fmt.Errorf("%w: presentation id is required", ErrNoDocument)
	}
	client, err := g.newClient(ctx)
	if err != nil {
		return nil, err
	}
	presentation, err := client.GetPresentation(ctx, g.presentationID)
	if err != nil {
		return nil, mapGoogleSlidesError(err)
	}
	return presentation, nil
}

// resolve fetches the locator's slide and returns the text content it
// addresses, failing with ErrElementNotFound when it no longer exists.
func (g *GoogleSlidesDocument) resolve(ctx context.Context, loc domain.Locator) (*slidesapi.TextContent, googleSlidesClient, error) {
	client, err := g.newClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	page, err := client.GetPage(ctx, g.presentationID, loc.SlideID)
	if err != nil {
		mapped := mapGoogleSlidesError(err)
		if errors.Is(mapped, ErrNoDocument) {
			return nil, nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
		}
		return nil, nil, mapped
	}

	for _, entry := range flattenPage(page) {
		element := entry.element
		if element.ObjectId != loc.ElementID {
			continue
		}
		if !loc.IsCell {
			if element.Shape == nil {
				break
			}
			if element.Shape.Text == nil {
				return &slidesapi.TextContent{}, client, nil
			}
			return element.Shape.Text, client, nil
		}
		if element.Table == nil || loc.Row >= len(element.Table.TableRows) {
			break
		}
		row := element.Table.TableRows[loc.Row]
		if row == nil || loc.Column >= len(row.TableCells) || row.TableCells[loc.Column] == nil {
			break
		}
		if text := row.TableCells[loc.Column].Text; text != nil {
			return text, client, nil
		}
		return &slidesapi.TextContent{}, client, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
}

type pageEntry struct {
	index   int
	element *slidesapi.PageElement
}

// flattenPage lists page elements in z-order, descending into groups, and
// numbers them in that order.
func flattenPage(page *slidesapi.Page) []pageEntry {
	var entries []pageEntry
	var walk func(elements []*slidesapi.PageElement)
	walk = func(elements []*slidesapi.PageElement) {
		for _, element := range elements {
			if element == nil {
				continue
			}
			if element.ElementGroup != nil {
				walk(element.ElementGroup.Children)
				continue
			}
			entries = append(entries, pageEntry{index: len(entries), element: element})
		}
	}
	walk(page.PageElements)
	return entries
}

func elementTexts(loc domain.Locator, element *slidesapi.PageElement) []domain.TextElement {
	switch {
	case element.Shape != nil:
		text := plainText(element.Shape.Text)
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []domain.TextElement{{Locator: loc, Text: text, Style: firstRunStyle(element.Shape.Text)}}
	case element.Table != nil:
		var out []domain.TextElement
		for rowIndex, row := range element.Table.TableRows {
			if row == nil {
				continue
			}
			for columnIndex, cell := range row.TableCells {
				if cell == nil {
					continue
				}
				cellLoc := loc
				cellLoc.IsCell, cellLoc.Row, cellLoc.Column = true, rowIndex, columnIndex
				out = append(out, domain.TextElement{
					Locator: cellLoc,
					Text:    plainText(cell.Text),
					Style:   firstRunStyle(cell.Text),
				})
			}
		}
		return out
	default:
		return nil
	}
}

// plainText joins the text runs and drops the trailing paragraph marker the
// API always appends.
func plainText(content *slidesapi.TextContent) string {
	if content == nil {
		return ""
	}
	var builder strings.Builder
	for _, element := range content.TextElements {
		if element == nil {
			continue
		}
		switch {
		case element.TextRun != nil:
			builder.WriteString(element.TextRun.Content)
		case element.AutoText != nil:
			builder.WriteString(element.AutoText.Content)
		}
	}
	return strings.TrimSuffix(builder.String(), "\n")
}

func firstRunStyle(content *slidesapi.TextContent) domain.StyleSnapshot {
	if content == nil {
		return domain.StyleSnapshot{}
	}
	for _, element := range content.TextElements {
		if element == nil || element.TextRun == nil || element.TextRun.Style == nil {
			continue
		}
		return fromTextStyle(element.TextRun.Style)
	}
	return domain.StyleSnapshot{}
}

func fromTextStyle(style *slidesapi.TextStyle) domain.StyleSnapshot {
	snapshot := domain.StyleSnapshot{
		FontFamily: style.FontFamily,
		Bold:       domain.Bool(style.Bold),
		Italic:     domain.Bool(style.Italic),
		Underline:  domain.Bool(style.Underline),
		Foreground: fromOptionalColor(style.ForegroundColor),
		Background: fromOptionalColor(style.BackgroundColor),
	}
	if style.FontSize != nil {
		snapshot.FontSize = style.FontSize.Magnitude
	}
	return snapshot
}

func fromOptionalColor(color *slidesapi.OptionalColor) domain.Color {
	if color == nil || color.OpaqueColor == nil {
		return domain.Color{}
	}
	switch {
	case color.OpaqueColor.RgbColor != nil:
		rgb := color.OpaqueColor.RgbColor
		return domain.RGBColor(rgb.Red, rgb.Green, rgb.Blue)
	case color.OpaqueColor.ThemeColor != "":
		return domain.ThemeColor(color.OpaqueColor.ThemeColor)
	default:
		return domain.Color{Kind: domain.ColorUnknown}
	}
}

// toTextStyle builds the request style and its field mask. Unset attributes
// stay out of the mask so they keep the shape's defaults.
func toTextStyle(snapshot domain.StyleSnapshot) (*slidesapi.TextStyle, []string) {
	style := &slidesapi.TextStyle{}
	var fields []string

	if snapshot.FontFamily != "" {
		style.FontFamily = snapshot.FontFamily
		fields = append(fields, "fontFamily")
	}
	if snapshot.FontSize > 0 {
		style.FontSize = &slidesapi.Dimension{Magnitude: snapshot.FontSize, Unit: "PT"}
		fields = append(fields, "fontSize")
	}
	if snapshot.Bold != nil {
		style.Bold = *snapshot.Bold
		style.ForceSendFields = append(style.ForceSendFields, "Bold")
		fields = append(fields, "bold")
	}
	if snapshot.Italic != nil {
		style.Italic = *snapshot.Italic
		style.ForceSendFields = append(style.ForceSendFields, "Italic")
		fields = append(fields, "italic")
	}
	if snapshot.Underline != nil {
		style.Underline = *snapshot.Underline
		style.ForceSendFields = append(style.ForceSendFields, "Underline")
		fields = append(fields, "underline")
	}
	// A masked field left unset resets to the inherited colour.
	if color := toOptionalColor(snapshot.Foreground); color != nil {
		style.ForegroundColor = color
		fields = append(fields, "foregroundColor")
	} else if snapshot.Foreground.Kind == domain.ColorNone {
		fields = append(fields, "foregroundColor")
	}
	if color := toOptionalColor(snapshot.Background); color != nil {
		style.BackgroundColor = color
		fields = append(fields, "backgroundColor")
	}
	return style, fields
}

func toOptionalColor(color domain.Color) *slidesapi.OptionalColor {
	switch color.Kind {
	case domain.ColorRGB:
		if color.RGB == nil {
			return nil
		}
		return &slidesapi.OptionalColor{OpaqueColor: &slidesapi.OpaqueColor{
			RgbColor: &slidesapi.RgbColor{
				Red:             color.RGB.R,
				Green:           color.RGB.G,
				Blue:            color.RGB.B,
				ForceSendFields: []string{"Red", "Green", "Blue"},
			},
		}}
	case domain.ColorTheme:
		return &slidesapi.OptionalColor{OpaqueColor: &slidesapi.OpaqueColor{ThemeColor: color.Theme}}
	default:
		return nil
	}
}

func cellLocation(loc domain.Locator) *slidesapi.TableCellLocation {
	if !loc.IsCell {
		return nil
	}
	return &slidesapi.TableCellLocation{
		RowIndex:        int64(loc.Row),
		ColumnIndex:     int64(loc.Column),
		ForceSendFields: []string{"RowIndex", "ColumnIndex"},
	}
}

func mapGoogleSlidesError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case 403:
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		case 404:
			return fmt.Errorf("%w: %v", ErrNoDocument, err)
		case 429:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		default:
			if apiErr.Code >= 500 {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}

	return err
}

// GoogleSlidesConfig holds the static credentials used when a session has
// not completed OAuth.
type GoogleSlidesConfig struct {
	AccessToken     string
	CredentialsFile string
}

func GoogleSlidesConfigFromEnv() GoogleSlidesConfig {
	return GoogleSlidesConfig{
		AccessToken:     strings.TrimSpace(os.Getenv("GOOGLE_SLIDES_ACCESS_TOKEN")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	}
}

func (c GoogleSlidesConfig) Configured() bool {
	return c.AccessToken != "" || c.CredentialsFile != ""
}

// GoogleSlidesOpener opens presentations with the session's OAuth token when
// one exists and the static credentials otherwise.
type GoogleSlidesOpener struct {
	config GoogleSlidesConfig
	oauth  *OAuthManager
}

func NewGoogleSlidesOpener(config GoogleSlidesConfig, oauth *OAuthManager) *GoogleSlidesOpener {
	return &GoogleSlidesOpener{config: config, oauth: oauth}
}

func (o *GoogleSlidesOpener) Name() string {
	return "google_slides"
}

func (o *GoogleSlidesOpener) Open(_ context.Context, req OpenRequest) (Document, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, fmt.Errorf("%w: documentId is required", ErrNoDocument)
	}
	return &GoogleSlidesDocument{
		presentationID: req.DocumentID,
		selection:      req.selection(),
		newClient: func(ctx context.Context) (googleSlidesClient, error) {
			return o.newClient(ctx, req.SessionKey)
		},
	}, nil
}

func (o *GoogleSlidesOpener) newClient(ctx context.Context, sessionKey string) (googleSlidesClient, error) {
	opts := []option.ClientOption{option.WithScopes(slidesapi.PresentationsScope)}

	if source, ok := o.oauth.TokenSource(ctx, sessionKey); ok {
		opts = append(opts, option.WithTokenSource(source))
	} else {
		switch {
		case o.config.AccessToken != "":
			opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: o.config.AccessToken,
			})))
		case o.config.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(o.config.CredentialsFile))
		default:
			return nil, fmt.Errorf("%w: connect Google Slides or set GOOGLE_SLIDES_ACCESS_TOKEN", ErrUnauthorized)
		}
	}

	service, err := slidesapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &googleSlidesAPIClient{service: service}, nil
}
