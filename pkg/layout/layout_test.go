package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// charWidth gives every rune a width of 10px, so a 40px budget fits words up
// to three characters plus the trailing space.
func charWidth(s string) int {
	return 10 * len([]rune(s))
}

func TestWrap_SingleShortLine(t *testing.T) {
	lines := Wrap("hi there", charWidth, 200)
	assert.Equal(t, []string{"hi there"}, lines)
}

func TestWrap_BreaksAtBudget(t *testing.T) {
	// "aa " and "bb " are 30px each; budget 60px fits both, "cc " overflows.
	lines := Wrap("aa bb cc", charWidth, 60)
	assert.Equal(t, []string{"aa bb", "cc"}, lines)
}

func TestWrap_OverwideWordStillPlaced(t *testing.T) {
	lines := Wrap("supercalifragilistic", charWidth, 40)
	require.Len(t, lines, 1)
	assert.Equal(t, "supercalifragilistic", lines[0])
}

func TestWrap_OverwideWordAfterOthers(t *testing.T) {
	lines := Wrap("aa supercalifragilistic bb", charWidth, 60)
	assert.Equal(t, []string{"aa", "supercalifragilistic", "bb"}, lines)
}

func TestWrap_BlankLinesPreserved(t *testing.T) {
	// k all-blank source lines produce k empty output lines.
	lines := Wrap("\n\n\n", charWidth, 100)
	assert.Equal(t, []string{"", "", "", ""}, lines)

	lines = Wrap("a\n\nb", charWidth, 100)
	assert.Equal(t, []string{"a", "", "b"}, lines)
}

func TestWrap_WhitespaceOnlyLineIsBlank(t *testing.T) {
	lines := Wrap("a\n   \nb", charWidth, 100)
	assert.Equal(t, []string{"a", "", "b"}, lines)
}

func TestWrap_NeverZeroLinesForNonEmptyInput(t *testing.T) {
	for _, input := range []string{"x", " ", "word", strings.Repeat("y", 100)} {
		assert.NotEmpty(t, Wrap(input, charWidth, 10), "input %q", input)
	}
}

func TestPaginate(t *testing.T) {
	lines := make([]string, 7)
	pages := Paginate(lines, 3)
	require.Len(t, pages, 3)
	assert.Len(t, pages[0], 3)
	assert.Len(t, pages[1], 3)
	assert.Len(t, pages[2], 1)
}

func TestPaginate_ExactMultiple(t *testing.T) {
	pages := Paginate(make([]string, 6), 3)
	require.Len(t, pages, 2)
	assert.Len(t, pages[1], 3)
}

func TestPaginate_CeilArithmetic(t *testing.T) {
	for _, tc := range []struct{ m, p int }{
		{1, 25}, {25, 25}, {26, 25}, {50, 25}, {51, 25}, {7, 1},
	} {
		pages := Paginate(make([]string, tc.m), tc.p)
		wantPages := (tc.m + tc.p - 1) / tc.p
		require.Len(t, pages, wantPages)

		lastSize := tc.m % tc.p
		if lastSize == 0 {
			lastSize = tc.p
		}
		assert.Len(t, pages[len(pages)-1], lastSize)
	}
}

func TestPaginate_Empty(t *testing.T) {
	assert.Nil(t, Paginate(nil, 25))
	assert.Nil(t, Paginate([]string{"a"}, 0))
}

func TestDefaultGeometry(t *testing.T) {
	g := DefaultGeometry()
	assert.Equal(t, 495, g.MaxLineWidth())
	assert.Equal(t, 25, g.LinesPerPage)
}
