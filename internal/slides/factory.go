package slides

import (
	"fmt"
	"strings"

	"github.com/alanmaizon/slidebuddy/internal/domain"
)

type OpenerConfig struct {
	// Driver is "google_slides" or "memory"; empty picks google_slides when
	// credentials or OAuth are available.
	Driver   string
	DeckPath string
	Google   GoogleSlidesConfig
}

func NewOpener(cfg OpenerConfig, oauth *OAuthManager) (Opener, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "memory"
		if cfg.Google.Configured() || oauth != nil {
			driver = "google_slides"
		}
	}

	switch driver {
	case "google_slides":
		return NewGoogleSlidesOpener(cfg.Google, oauth), nil
	case "memory":
		if strings.TrimSpace(cfg.DeckPath) == "" {
			return NewMemoryOpener(NewMemoryDeck(DemoDeck())), nil
		}
		deck, err := LoadDeck(cfg.DeckPath)
		if err != nil {
			return nil, err
		}
		return NewMemoryOpener(deck), nil
	default:
		return nil, fmt.Errorf("unknown document driver %q", cfg.Driver)
	}
}

// DemoDeck is the deck served when no presentation backend is configured.
func DemoDeck() Deck {
	bold := domain.Bool(true)
	return Deck{
		ID:    "demo",
		Title: "Quarterly Product Review",
		Slides: []Slide{
			{
				ID: "slide-1",
				Elements: []Element{
					{ID: "title-1", Text: "Quarterly Product Review", Style: domain.StyleSnapshot{FontFamily: "Roboto", FontSize: 32, Bold: bold}},
					{ID: "body-1", Text: "Our PRD covers the roadmap for the next two quarters.", Style: domain.StyleSnapshot{FontFamily: "Roboto", FontSize: 18}},
				},
			},
			{
				ID: "slide-2",
				Elements: []Element{
					{ID: "title-2", Text: "Key Metrics", Style: domain.StyleSnapshot{FontFamily: "Roboto", FontSize: 28, Bold: bold}},
					{ID: "table-2", Kind: KindTable, Cells: [][]Cell{
						{{Text: "Metric"}, {Text: "Value"}},
						{{Text: "Active users"}, {Text: "42"}},
					}},
					{ID: "image-2", Kind: KindImage},
				},
			},
			{
				ID: "slide-3",
				Elements: []Element{
					{ID: "body-3", Text: "We will ship the new onboarding flow and improve retention.", Style: domain.StyleSnapshot{
						FontFamily: "Roboto",
						FontSize:   18,
						Foreground: domain.ThemeColor("ACCENT1"),
					}},
				},
			},
		},
	}
}
