package vectra

import (
	"bytes"
	"errors"
	"image/color"
	"strings"
	"testing"
)

func testDocument() *Document {
	return &Document{
		Width: 64, Height: 48,
		Paths: []VectorPath{
			filled(squarePath(2, 2, 30), color.NRGBA{R: 200, G: 100, B: 50, A: 255}),
			{
				Elements: []PathElement{
					MoveTo{Point: Point{X: 40, Y: 4}},
					CubicTo{
						Control1: Point{X: 50, Y: 4},
						Control2: Point{X: 60, Y: 14},
						Point:    Point{X: 60, Y: 24}},
					ClosePath{},
				},
				Fill: LinearGradientFill{
					Start: Point{X: 40, Y: 4},
					End:   Point{X: 60, Y: 24},
					Stops: []GradientStop{
						{Offset: 0, Color: color.NRGBA{R: 10, G: 20, B: 30, A: 255}},
						{Offset: 1, Color: color.NRGBA{R: 200, G: 210, B: 220, A: 255}},
					},
				},
			},
		},
	}
}

func TestWriteSVGStructure(t *testing.T) {
	var buf bytes.Buffer
	if err := testDocument().WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`width="64"`,
		`height="48"`,
		`fill="#c86432"`,
		`fill-rule="evenodd"`,
		`url(#g1)`,
		`id="g1"`,
		`</svg>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestWriteSVGBackground(t *testing.T) {
	doc := testDocument()
	doc.Background = color.NRGBA{R: 250, G: 250, B: 240, A: 255}
	doc.HasBackground = true
	var buf bytes.Buffer
	if err := doc.WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	if !strings.Contains(buf.String(), `fill="#fafaf0"`) {
		t.Error("background rect missing")
	}
}

func TestWriteSVGDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	doc := testDocument()
	if err := doc.WriteSVG(&a); err != nil {
		t.Fatal(err)
	}
	if err := doc.WriteSVG(&b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("repeated serialization must produce identical bytes")
	}
}

func TestWriteSVGStroke(t *testing.T) {
	doc := &Document{Width: 32, Height: 32, Paths: []VectorPath{{
		Elements: []PathElement{
			MoveTo{Point: Point{X: 1, Y: 1}},
			LineTo{Point: Point{X: 30, Y: 30}},
		},
		Stroke: StrokeStyle{Width: 1.5, Color: [4]uint8{40, 40, 40, 255}},
	}}}
	var buf bytes.Buffer
	if err := doc.WriteSVG(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`fill="none"`,
		`stroke="#282828"`,
		`stroke-width="1.5"`,
		`stroke-linecap="round"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

type failWriter struct{ n int }

var errSink = errors.New("sink full")

func (w *failWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	if w.n > 40 {
		return 0, errSink
	}
	return len(p), nil
}

func TestWriteSVGPropagatesWriteError(t *testing.T) {
	err := testDocument().WriteSVG(&failWriter{})
	if !errors.Is(err, errSink) {
		t.Errorf("err = %v, want the writer's error", err)
	}
}

func TestPathData(t *testing.T) {
	p := squarePath(0, 0, 10)
	got := pathData(&p)
	want := "M0 0L10 0L10 10L0 10Z"
	if got != want {
		t.Errorf("pathData = %q, want %q", got, want)
	}
}
