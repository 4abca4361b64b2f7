package domain

import (
	"fmt"
	"strings"
)

// Locator addresses a text-bearing element. Row and Column are only
// meaningful when IsCell is set.
type Locator struct {
	SlideID      string `json:"slideId" yaml:"slide_id"`
	SlideIndex   int    `json:"slideIndex" yaml:"slide_index"`
	ElementID    string `json:"elementId" yaml:"element_id"`
	ElementIndex int    `json:"elementIndex" yaml:"element_index"`
	IsCell       bool   `json:"isCell,omitempty" yaml:"is_cell,omitempty"`
	Row          int    `json:"row,omitempty" yaml:"row,omitempty"`
	Column       int    `json:"column,omitempty" yaml:"column,omitempty"`
}

func (l Locator) String() string {
	if l.IsCell {
		return fmt.Sprintf("slide %d / %s [%d,%d]", l.SlideIndex+1, l.ElementID, l.Row, l.Column)
	}
	return fmt.Sprintf("slide %d / %s", l.SlideIndex+1, l.ElementID)
}

// Key is a stable identity for maps and persisted snapshots.
func (l Locator) Key() string {
	if l.IsCell {
		return fmt.Sprintf("%s/%s/%d/%d", l.SlideID, l.ElementID, l.Row, l.Column)
	}
	return l.SlideID + "/" + l.ElementID
}

// Less orders locators in document order.
func (l Locator) Less(other Locator) bool {
	if l.SlideIndex != other.SlideIndex {
		return l.SlideIndex < other.SlideIndex
	}
	if l.ElementIndex != other.ElementIndex {
		return l.ElementIndex < other.ElementIndex
	}
	if l.Row != other.Row {
		return l.Row < other.Row
	}
	return l.Column < other.Column
}

type ColorKind string

const (
	ColorNone    ColorKind = ""
	ColorRGB     ColorKind = "rgb"
	ColorTheme   ColorKind = "theme"
	ColorUnknown ColorKind = "unknown"
)

type RGB struct {
	R float64 `json:"r" yaml:"r"`
	G float64 `json:"g" yaml:"g"`
	B float64 `json:"b" yaml:"b"`
}

// Color is RGB | Theme | Unknown; Kind selects the populated field.
type Color struct {
	Kind  ColorKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	RGB   *RGB      `json:"rgb,omitempty" yaml:"rgb,omitempty"`
	Theme string    `json:"theme,omitempty" yaml:"theme,omitempty"`
}

func RGBColor(r, g, b float64) Color {
	return Color{Kind: ColorRGB, RGB: &RGB{R: r, G: g, B: b}}
}

func ThemeColor(name string) Color {
	return Color{Kind: ColorTheme, Theme: name}
}

func (c Color) IsSet() bool {
	return c.Kind == ColorRGB || c.Kind == ColorTheme
}

func (c Color) Equal(other Color) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ColorRGB:
		if c.RGB == nil || other.RGB == nil {
			return c.RGB == other.RGB
		}
		return *c.RGB == *other.RGB
	case ColorTheme:
		return c.Theme == other.Theme
	}
	return true
}

type StyleSnapshot struct {
	FontFamily string  `json:"fontFamily,omitempty" yaml:"font_family,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty" yaml:"font_size,omitempty"`
	Bold       *bool   `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic     *bool   `json:"italic,omitempty" yaml:"italic,omitempty"`
	Underline  *bool   `json:"underline,omitempty" yaml:"underline,omitempty"`
	Foreground Color   `json:"foreground,omitempty" yaml:"foreground,omitempty"`
	Background Color   `json:"background,omitempty" yaml:"background,omitempty"`
}

func (s StyleSnapshot) Equal(other StyleSnapshot) bool {
	return s.FontFamily == other.FontFamily &&
		s.FontSize == other.FontSize &&
		boolPtrEqual(s.Bold, other.Bold) &&
		boolPtrEqual(s.Italic, other.Italic) &&
		boolPtrEqual(s.Underline, other.Underline) &&
		s.Foreground.Equal(other.Foreground) &&
		s.Background.Equal(other.Background)
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func Bool(v bool) *bool {
	return &v
}

type TextElement struct {
	Locator Locator       `json:"locator"`
	Text    string        `json:"text"`
	Style   StyleSnapshot `json:"style"`
}

const previewRunes = 50

// Preview truncates text for result reports.
func Preview(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= previewRunes {
		return trimmed
	}
	return string(runes[:previewRunes]) + "..."
}
