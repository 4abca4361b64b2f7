package domain

import (
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// nearDistance is the largest CIE L*a*b* distance at which two RGB colours
// count as the same colour for recolouring.
const nearDistance = 0.2

var themeColors = []string{
	"DARK1", "LIGHT1", "DARK2", "LIGHT2",
	"ACCENT1", "ACCENT2", "ACCENT3", "ACCENT4", "ACCENT5", "ACCENT6",
	"HYPERLINK", "FOLLOWED_HYPERLINK",
	"TEXT1", "BACKGROUND1", "TEXT2", "BACKGROUND2",
}

// ParseColor reads a hex code (#rgb or #rrggbb), a CSS/SVG colour name
// ("navy", "dark blue") or a Slides theme colour ("accent 1", "TEXT1").
func ParseColor(raw string) (Color, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return Color{}, false
	}

	if strings.HasPrefix(cleaned, "#") {
		parsed, err := colorful.Hex(strings.ToLower(cleaned))
		if err != nil {
			return Color{}, false
		}
		return fromColorful(parsed), true
	}

	compact := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(cleaned))
	if rgba, ok := colornames.Map[compact]; ok {
		parsed, _ := colorful.MakeColor(rgba)
		return fromColorful(parsed), true
	}
	for _, theme := range themeColors {
		if strings.ReplaceAll(strings.ToLower(theme), "_", "") == compact {
			return ThemeColor(theme), true
		}
	}
	return Color{}, false
}

func fromColorful(c colorful.Color) Color {
	c = c.Clamped()
	return RGBColor(c.R, c.G, c.B)
}

// String renders RGB colours as #rrggbb and theme colours by name.
func (c Color) String() string {
	switch c.Kind {
	case ColorRGB:
		if c.RGB == nil {
			return ""
		}
		return colorful.Color{R: c.RGB.R, G: c.RGB.G, B: c.RGB.B}.Hex()
	case ColorTheme:
		return strings.ToLower(c.Theme)
	case ColorUnknown:
		return "unknown"
	}
	return ""
}

// Near reports whether c and other read as the same colour: equal theme
// names, or RGB values close in L*a*b* space. Unset colours never match.
func (c Color) Near(other Color) bool {
	if !c.IsSet() || !other.IsSet() || c.Kind != other.Kind {
		return false
	}
	if c.Kind == ColorTheme {
		return c.Theme == other.Theme
	}
	if c.RGB == nil || other.RGB == nil {
		return false
	}
	a := colorful.Color{R: c.RGB.R, G: c.RGB.G, B: c.RGB.B}
	b := colorful.Color{R: other.RGB.R, G: other.RGB.G, B: other.RGB.B}
	return a.DistanceLab(b) <= nearDistance
}
