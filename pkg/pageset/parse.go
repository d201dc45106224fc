package pageset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed indicates input that does not match the page-list grammar.
var ErrMalformed = errors.New("malformed page list")

// Parse parses a textual page list into Pages. The grammar is
//
//	list  = term (',' term)*
//	term  = int | int '-' int
//
// Ranges are inclusive and must be ascending ("3-1" is malformed, not an
// empty range). Whitespace around terms is tolerated. Bounds against a
// document are not checked here; that is the caller's concern.
func Parse(s string) (Pages, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}

	var pages Pages
	for _, term := range strings.Split(s, ",") {
		term = strings.TrimSpace(term)

		if start, end, ok := strings.Cut(term, "-"); ok {
			lo, err := parseInt(start)
			if err != nil {
				return nil, err
			}
			hi, err := parseInt(end)
			if err != nil {
				return nil, err
			}
			if lo > hi {
				return nil, fmt.Errorf("%w: descending range %q", ErrMalformed, term)
			}
			for i := lo; i <= hi; i++ {
				pages = append(pages, i)
			}
			continue
		}

		n, err := parseInt(term)
		if err != nil {
			return nil, err
		}
		pages = append(pages, n)
	}

	return pages, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a page number", ErrMalformed, s)
	}
	return n, nil
}
