package slides

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"gopkg.in/yaml.v3"
)

type ElementKind string

const (
	KindShape ElementKind = "shape"
	KindTable ElementKind = "table"
	KindImage ElementKind = "image"
)

// Deck is the YAML form of an in-process presentation.
type Deck struct {
	ID     string  `yaml:"id"`
	Title  string  `yaml:"title"`
	Slides []Slide `yaml:"slides"`
}

type Slide struct {
	ID       string    `yaml:"id"`
	Elements []Element `yaml:"elements"`
}

type Element struct {
	ID    string               `yaml:"id"`
	Kind  ElementKind          `yaml:"kind,omitempty"`
	Text  string               `yaml:"text,omitempty"`
	Style domain.StyleSnapshot `yaml:"style,omitempty"`
	Cells [][]Cell             `yaml:"cells,omitempty"`
}

type Cell struct {
	Text  string               `yaml:"text"`
	Style domain.StyleSnapshot `yaml:"style,omitempty"`
}

func (e Element) kind() ElementKind {
	if e.Kind != "" {
		return e.Kind
	}
	if len(e.Cells) > 0 {
		return KindTable
	}
	return KindShape
}

type deckStore struct {
	mu   sync.RWMutex
	deck Deck
	path string
}

// MemoryDeck is a Document over an in-process Deck. Views made with View
// share storage but carry their own selection.
type MemoryDeck struct {
	store     *deckStore
	selection domain.ScopeDescriptor
}

func NewMemoryDeck(deck Deck) *MemoryDeck {
	return &MemoryDeck{
		store:     &deckStore{deck: cloneDeck(deck)},
		selection: domain.ScopeDescriptor{Kind: domain.ScopeDocument},
	}
}

func ParseDeck(data []byte) (Deck, error) {
	var deck Deck
	if err := yaml.Unmarshal(data, &deck); err != nil {
		return Deck{}, fmt.Errorf("parse deck: %w", err)
	}
	if err := deck.validate(); err != nil {
		return Deck{}, err
	}
	return deck, nil
}

// LoadDeck reads a YAML deck; Save writes it back to the same path.
func LoadDeck(path string) (*MemoryDeck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoDocument, path)
		}
		return nil, fmt.Errorf("read deck: %w", err)
	}
	deck, err := ParseDeck(data)
	if err != nil {
		return nil, err
	}

	m := NewMemoryDeck(deck)
	m.store.path = path
	return m, nil
}

func (d Deck) validate() error {
	slideIDs := make(map[string]struct{}, len(d.Slides))
	for i, slide := range d.Slides {
		if strings.TrimSpace(slide.ID) == "" {
			return fmt.Errorf("parse deck: slide %d has no id", i+1)
		}
		if _, dup := slideIDs[slide.ID]; dup {
			return fmt.Errorf("parse deck: duplicate slide id %q", slide.ID)
		}
		slideIDs[slide.ID] = struct{}{}
		for j, element := range slide.Elements {
			if strings.TrimSpace(element.ID) == "" {
				return fmt.Errorf("parse deck: element %d on slide %q has no id", j+1, slide.ID)
			}
		}
	}
	return nil
}

func (m *MemoryDeck) Save() error {
	m.store.mu.RLock()
	path := m.store.path
	m.store.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("save deck: %w: deck was not loaded from a file", ErrNoDocument)
	}
	return m.SaveAs(path)
}

func (m *MemoryDeck) SaveAs(path string) error {
	m.store.mu.RLock()
	data, err := yaml.Marshal(m.store.deck)
	m.store.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	return nil
}

// View returns a Document over the same deck bound to the caller's selection.
func (m *MemoryDeck) View(req OpenRequest) *MemoryDeck {
	return &MemoryDeck{store: m.store, selection: req.selection()}
}

// Deck returns a copy of the current deck state.
func (m *MemoryDeck) Deck() Deck {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return cloneDeck(m.store.deck)
}

// RemoveElement deletes an element, as a collaborator editing the deck might.
func (m *MemoryDeck) RemoveElement(slideID string, elementID string) bool {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	for i := range m.store.deck.Slides {
		slide := &m.store.deck.Slides[i]
		if slide.ID != slideID {
			continue
		}
		for j := range slide.Elements {
			if slide.Elements[j].ID == elementID {
				slide.Elements = append(slide.Elements[:j], slide.Elements[j+1:]...)
				return true
			}
		}
	}
	return false
}

func (m *MemoryDeck) Name() string {
	return "memory"
}

func (m *MemoryDeck) ListElements(_ context.Context, scope domain.ScopeDescriptor) ([]domain.TextElement, error) {
	var elements []domain.TextElement
	err := observeDocumentCall(m.Name(), "list_elements", func() error {
		m.store.mu.RLock()
		defer m.store.mu.RUnlock()

		if len(m.store.deck.Slides) == 0 {
			return fmt.Errorf("%w: deck has no slides", ErrNoDocument)
		}

		for slideIndex, slide := range m.store.deck.Slides {
			for elementIndex, element := range slide.Elements {
				base := domain.Locator{
					SlideID:      slide.ID,
					SlideIndex:   slideIndex,
					ElementID:    element.ID,
					ElementIndex: elementIndex,
				}
				if !inScope(scope, base) {
					continue
				}

				switch element.kind() {
				case KindShape:
					if strings.TrimSpace(element.Text) == "" {
						continue
					}
					elements = append(elements, domain.TextElement{
						Locator: base,
						Text:    element.Text,
						Style:   element.Style,
					})
				case KindTable:
					for row, cells := range element.Cells {
						for column, cell := range cells {
							loc := base
							loc.IsCell, loc.Row, loc.Column = true, row, column
							elements = append(elements, domain.TextElement{
								Locator: loc,
								Text:    cell.Text,
								Style:   cell.Style,
							})
						}
					}
				}
			}
		}
		return nil
	})
	return elements, err
}

func (m *MemoryDeck) GetText(_ context.Context, loc domain.Locator) (string, error) {
	var text string
	err := observeDocumentCall(m.Name(), "get_text", func() error {
		m.store.mu.RLock()
		defer m.store.mu.RUnlock()

		found, err := m.store.find(loc)
		if err != nil {
			return err
		}
		text = *found.text
		return nil
	})
	return text, err
}

// SetText replaces the element's text. Like the Slides API, replacing text
// drops its run styling; callers re-apply style afterwards.
func (m *MemoryDeck) SetText(_ context.Context, loc domain.Locator, text string) error {
	return observeDocumentCall(m.Name(), "set_text", func() error {
		m.store.mu.Lock()
		defer m.store.mu.Unlock()

		found, err := m.store.find(loc)
		if err != nil {
			return err
		}
		*found.text = text
		*found.style = domain.StyleSnapshot{}
		return nil
	})
}

func (m *MemoryDeck) GetStyle(_ context.Context, loc domain.Locator) (domain.StyleSnapshot, error) {
	var style domain.StyleSnapshot
	err := observeDocumentCall(m.Name(), "get_style", func() error {
		m.store.mu.RLock()
		defer m.store.mu.RUnlock()

		found, err := m.store.find(loc)
		if err != nil {
			return err
		}
		style = cloneStyle(*found.style)
		return nil
	})
	return style, err
}

func (m *MemoryDeck) SetStyle(_ context.Context, loc domain.Locator, style domain.StyleSnapshot) error {
	return observeDocumentCall(m.Name(), "set_style", func() error {
		m.store.mu.Lock()
		defer m.store.mu.Unlock()

		found, err := m.store.find(loc)
		if err != nil {
			return err
		}
		*found.style = cloneStyle(style)
		return nil
	})
}

func (m *MemoryDeck) SelectionScope(_ context.Context) (domain.ScopeDescriptor, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	if len(m.store.deck.Slides) == 0 {
		return domain.ScopeDescriptor{}, fmt.Errorf("%w: deck has no slides", ErrNoDocument)
	}
	selection := m.selection
	selection.ElementIDs = append([]string(nil), selection.ElementIDs...)
	if selection.SlideID == "" {
		selection.SlideID = m.store.deck.Slides[0].ID
	}
	return selection, nil
}

func (m *MemoryDeck) Summary(_ context.Context) (domain.ContextSummary, error) {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	if len(m.store.deck.Slides) == 0 {
		return domain.ContextSummary{}, fmt.Errorf("%w: deck has no slides", ErrNoDocument)
	}
	return domain.ContextSummary{
		Title:      m.store.deck.Title,
		SlideCount: len(m.store.deck.Slides),
		Selection:  describeSelection(m.selection),
	}, nil
}

func describeSelection(selection domain.ScopeDescriptor) string {
	switch selection.Kind {
	case domain.ScopeSelection:
		return fmt.Sprintf("%d selected element(s) on slide %s", len(selection.ElementIDs), selection.SlideID)
	case domain.ScopeCurrentSlide:
		return "slide " + selection.SlideID
	default:
		return "nothing selected"
	}
}

type textSlot struct {
	text  *string
	style *domain.StyleSnapshot
}

func (s *deckStore) find(loc domain.Locator) (textSlot, error) {
	for i := range s.deck.Slides {
		slide := &s.deck.Slides[i]
		if slide.ID != loc.SlideID {
			continue
		}
		for j := range slide.Elements {
			element := &slide.Elements[j]
			if element.ID != loc.ElementID {
				continue
			}
			if !loc.IsCell {
				if element.kind() != KindShape {
					return textSlot{}, fmt.Errorf("%w: %s holds no text", ErrElementNotFound, loc)
				}
				return textSlot{text: &element.Text, style: &element.Style}, nil
			}
			if loc.Row < 0 || loc.Row >= len(element.Cells) || loc.Column < 0 || loc.Column >= len(element.Cells[loc.Row]) {
				return textSlot{}, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
			}
			cell := &element.Cells[loc.Row][loc.Column]
			return textSlot{text: &cell.Text, style: &cell.Style}, nil
		}
	}
	return textSlot{}, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
}

// MemoryOpener serves every request from one shared deck.
type MemoryOpener struct {
	deck *MemoryDeck
}

func NewMemoryOpener(deck *MemoryDeck) *MemoryOpener {
	return &MemoryOpener{deck: deck}
}

func (o *MemoryOpener) Name() string {
	return "memory"
}

func (o *MemoryOpener) Open(_ context.Context, req OpenRequest) (Document, error) {
	if o.deck == nil {
		return nil, ErrNoDocument
	}
	return o.deck.View(req), nil
}

func cloneDeck(deck Deck) Deck {
	out := Deck{ID: deck.ID, Title: deck.Title, Slides: make([]Slide, len(deck.Slides))}
	for i, slide := range deck.Slides {
		copied := Slide{ID: slide.ID, Elements: make([]Element, len(slide.Elements))}
		for j, element := range slide.Elements {
			e := element
			e.Style = cloneStyle(element.Style)
			if element.Cells != nil {
				e.Cells = make([][]Cell, len(element.Cells))
				for r, row := range element.Cells {
					e.Cells[r] = make([]Cell, len(row))
					for c, cell := range row {
						e.Cells[r][c] = Cell{Text: cell.Text, Style: cloneStyle(cell.Style)}
					}
				}
			}
			copied.Elements[j] = e
		}
		out.Slides[i] = copied
	}
	return out
}

func cloneStyle(style domain.StyleSnapshot) domain.StyleSnapshot {
	out := style
	out.Bold = cloneBool(style.Bold)
	out.Italic = cloneBool(style.Italic)
	out.Underline = cloneBool(style.Underline)
	out.Foreground = cloneColor(style.Foreground)
	out.Background = cloneColor(style.Background)
	return out
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	copied := *v
	return &copied
}

func cloneColor(c domain.Color) domain.Color {
	if c.RGB != nil {
		rgb := *c.RGB
		c.RGB = &rgb
	}
	return c
}
