package summary_test

import (
	"testing"

	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
)

func TestFormatHTML(t *testing.T) {
	in := "Overview **important** <b>\n* first point\n* second point\nClosing"
	want := "Overview <strong>important</strong> &lt;b&gt;\n<ul><li>first point</li>\n<li>second point</li>\n</ul>Closing"
	if got := summary.FormatHTML(in); got != want {
		t.Fatalf("FormatHTML =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatHTMLClosesTrailingList(t *testing.T) {
	got := summary.FormatHTML("* only")
	if got != "<ul><li>only</li>\n</ul>" {
		t.Fatalf("unexpected output %q", got)
	}
}
