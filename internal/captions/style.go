package captions

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

// Style controls caption layout and colors.
type Style struct {
	// FontScales are candidate glyph multipliers; the largest that fits wins.
	FontScales     []float64
	WordSpacing    int
	BottomMargin   int
	BoxPadding     int
	TextColor      color.NRGBA
	HighlightColor color.NRGBA
	BoxColor       color.NRGBA
}

// StyleFromConfig converts the [captions] section into a Style.
func StyleFromConfig(cfg config.Captions) (Style, error) {
	style := Style{
		WordSpacing:  cfg.WordSpacing,
		BottomMargin: cfg.BottomMargin,
		BoxPadding:   cfg.BoxPadding,
	}
	scales := cfg.FontScales
	if len(scales) == 0 {
		scales = config.DefaultFontScales()
	}
	style.FontScales = append([]float64(nil), scales...)
	sort.Sort(sort.Reverse(sort.Float64Slice(style.FontScales)))

	var err error
	if style.TextColor, err = ParseColor(cfg.TextColor); err != nil {
		return Style{}, fmt.Errorf("text color: %w", err)
	}
	if style.HighlightColor, err = ParseColor(cfg.HighlightColor); err != nil {
		return Style{}, fmt.Errorf("highlight color: %w", err)
	}
	if style.BoxColor, err = ParseColor(cfg.BoxColor); err != nil {
		return Style{}, fmt.Errorf("box color: %w", err)
	}
	return style, nil
}

// ParseColor decodes #RRGGBB into an opaque color.
func ParseColor(value string) (color.NRGBA, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(raw) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", value)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", value, err)
	}
	return color.NRGBA{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
}
