package captions_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/MayankTamakuwala/TranscriBelt/internal/captions"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcript"
)

func testStyle(t *testing.T) captions.Style {
	t.Helper()
	style, err := captions.StyleFromConfig(config.Default().Captions)
	if err != nil {
		t.Fatalf("StyleFromConfig: %v", err)
	}
	return style
}

func grayFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}

func TestRenderWithoutSegmentsLeavesFramesUntouched(t *testing.T) {
	r := captions.NewRenderer(transcript.Transcript{}, testStyle(t))
	frame := grayFrame(320, 240)
	for i := 0; i < 30; i++ {
		out, changed := r.Render(frame, float64(i)/30)
		if changed {
			t.Fatalf("frame %d unexpectedly changed", i)
		}
		if out != image.Image(frame) {
			t.Fatalf("frame %d was copied", i)
		}
	}
}

func TestRenderHighlightsSpokenWord(t *testing.T) {
	style := testStyle(t)
	tr := transcript.Transcript{Segments: []transcript.Segment{{
		Start: 1, End: 3, Text: "hello world",
		Words: []transcript.Word{{Start: 1, End: 2, Text: "hello"}, {Start: 2, End: 3, Text: "world"}},
	}}}
	r := captions.NewRenderer(tr, style)
	frame := grayFrame(640, 360)

	if _, changed := r.Render(frame, 0.5); changed {
		t.Fatal("frame before segment start should not change")
	}
	out, changed := r.Render(frame, 1.5)
	if !changed {
		t.Fatal("expected caption on frame inside segment")
	}
	if !hasColor(out, style.HighlightColor) {
		t.Fatal("expected highlighted glyph pixels")
	}
	if !hasColor(out, style.BoxColor) {
		t.Fatal("expected caption box")
	}
	if frame.Pix[0] != 0x80 {
		t.Fatal("source frame was mutated")
	}

	if _, changed := r.Render(frame, 3.0); changed {
		t.Fatal("segment end is exclusive")
	}
}

func TestCursorDoesNotRewind(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{
		{Start: 0, End: 1, Text: "first"},
		{Start: 1, End: 2, Text: "second"},
	}}
	r := captions.NewRenderer(tr, testStyle(t))
	if seg, ok := r.Active(1.5); !ok || seg.Text != "second" {
		t.Fatalf("expected second segment, got %+v %v", seg, ok)
	}
	if _, ok := r.Active(0.5); ok {
		t.Fatal("cursor rewound to an earlier segment")
	}
}

func TestCursorSkipsShortSegmentsBetweenFrames(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{
		{Start: 0, End: 0.01, Text: "blip"},
		{Start: 0.01, End: 0.02, Text: "blip"},
		{Start: 0.5, End: 2, Text: "steady"},
	}}
	r := captions.NewRenderer(tr, testStyle(t))
	if seg, ok := r.Active(1); !ok || seg.Text != "steady" {
		t.Fatalf("expected steady segment, got %+v %v", seg, ok)
	}
}

func TestParseColor(t *testing.T) {
	c, err := captions.ParseColor("#00FFFF")
	if err != nil {
		t.Fatalf("ParseColor: %v", err)
	}
	if c != (color.NRGBA{R: 0, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatalf("unexpected color %+v", c)
	}
	if _, err := captions.ParseColor("cyan"); err == nil {
		t.Fatal("expected error for named color")
	}
}

func hasColor(img image.Image, want color.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA) == want {
				return true
			}
		}
	}
	return false
}
