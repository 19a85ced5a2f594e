package captions

import (
	"image"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MayankTamakuwala/TranscriBelt/internal/transcript"
)

var face = basicfont.Face7x13

// Renderer burns the active segment of a transcript into video frames. Frames
// must be presented in non-decreasing time order; the segment cursor only
// moves forward.
type Renderer struct {
	style    Style
	segments []transcript.Segment
	cursor   int
	glyphs   map[glyphKey]*image.NRGBA
}

type glyphKey struct {
	text  string
	scale float64
}

// NewRenderer prepares a renderer for one pass over a video.
func NewRenderer(t transcript.Transcript, style Style) *Renderer {
	return &Renderer{
		style:    style,
		segments: t.Segments,
		glyphs:   make(map[glyphKey]*image.NRGBA),
	}
}

// Active returns the segment covering t, advancing the cursor past segments
// that have already ended.
func (r *Renderer) Active(t float64) (transcript.Segment, bool) {
	for r.cursor < len(r.segments) && t >= r.segments[r.cursor].End {
		r.cursor++
	}
	if r.cursor >= len(r.segments) {
		return transcript.Segment{}, false
	}
	seg := r.segments[r.cursor]
	if !seg.Contains(t) {
		return transcript.Segment{}, false
	}
	return seg, true
}

// Render draws the caption active at t onto a copy of frame. When nothing is
// active the original frame is returned and changed is false.
func (r *Renderer) Render(frame image.Image, t float64) (out image.Image, changed bool) {
	seg, ok := r.Active(t)
	if !ok {
		return frame, false
	}
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return frame, false
	}

	dst := imaging.Clone(frame)
	bounds := dst.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	scale := r.pickScale(text, width)
	totalWidth := scaled(measure(text), scale)
	textHeight := scaled(face.Ascent, scale)

	x := bounds.Min.X + (width-totalWidth)/2
	baseline := bounds.Min.Y + height - r.style.BottomMargin
	pad := r.style.BoxPadding

	box := image.Rect(x-pad, baseline-textHeight-pad, x+totalWidth+pad, baseline+pad).Intersect(bounds)
	draw.Draw(dst, box, image.NewUniform(r.style.BoxColor), image.Point{}, draw.Src)

	for _, w := range wordsOf(seg) {
		col := r.style.TextColor
		if w.Contains(t) {
			col = r.style.HighlightColor
		}
		glyph := r.glyph(w.Text, scale)
		top := baseline - textHeight
		rect := image.Rect(x, top, x+glyph.Bounds().Dx(), top+glyph.Bounds().Dy())
		draw.DrawMask(dst, rect, image.NewUniform(col), image.Point{}, glyph, image.Point{}, draw.Over)
		x += glyph.Bounds().Dx() + r.style.WordSpacing
	}
	return dst, true
}

// pickScale returns the largest configured scale whose rendering of text fits
// width, or the smallest scale when none fit.
func (r *Renderer) pickScale(text string, width int) float64 {
	base := measure(text)
	scales := r.style.FontScales
	if len(scales) == 0 {
		return 1
	}
	for _, s := range scales {
		if scaled(base, s) <= width {
			return s
		}
	}
	return scales[len(scales)-1]
}

// glyph renders text at the face's native size and scales the mask.
func (r *Renderer) glyph(text string, scale float64) *image.NRGBA {
	key := glyphKey{text: text, scale: scale}
	if g, ok := r.glyphs[key]; ok {
		return g
	}
	w := measure(text)
	h := face.Ascent + face.Descent
	mask := image.NewAlpha(image.Rect(0, 0, max(w, 1), h))
	d := font.Drawer{Dst: mask, Src: image.Opaque, Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(text)
	g := imaging.Resize(mask, max(scaled(w, scale), 1), max(scaled(h, scale), 1), imaging.NearestNeighbor)
	r.glyphs[key] = g
	return g
}

func wordsOf(seg transcript.Segment) []transcript.Word {
	if len(seg.Words) > 0 {
		return seg.Words
	}
	// Unaligned segments are drawn without highlight.
	fields := strings.Fields(seg.Text)
	words := make([]transcript.Word, len(fields))
	for i, f := range fields {
		words[i] = transcript.Word{Text: f, Start: -1, End: -1}
	}
	return words
}

func measure(text string) int {
	return font.MeasureString(face, text).Ceil()
}

func scaled(px int, scale float64) int {
	return int(math.Round(float64(px) * scale))
}
