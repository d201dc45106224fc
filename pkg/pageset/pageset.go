// Package pageset computes ordered page-index collections from a document's
// total page count. All indices are 1-based. Range and EveryK are strict
// about bounds; Keep deliberately is not (see Keep).
package pageset

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidRange indicates a start/end or step outside the document bounds.
	ErrInvalidRange = errors.New("invalid page range")

	// ErrEmptyResult indicates an operation that would produce a document
	// with zero pages.
	ErrEmptyResult = errors.New("resulting page set is empty")
)

// Pages is an ordered sequence of 1-based page indices.
type Pages []int

// Range returns the contiguous ascending sequence [start..end].
// Valid iff 1 <= start <= end <= total.
func Range(total, start, end int) (Pages, error) {
	if total < 1 {
		return nil, fmt.Errorf("%w: document has %d pages", ErrInvalidRange, total)
	}
	if start < 1 || end > total || start > end {
		return nil, fmt.Errorf("%w: %d-%d of %d pages", ErrInvalidRange, start, end, total)
	}

	pages := make(Pages, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages, nil
}

// EveryK splits [1..total] into consecutive chunks of step pages each, the
// last chunk possibly shorter. Each chunk becomes one output document.
func EveryK(total, step int) ([]Pages, error) {
	if step < 1 {
		return nil, fmt.Errorf("%w: step must be at least 1, got %d", ErrInvalidRange, step)
	}
	if total < 1 {
		return nil, fmt.Errorf("%w: document has %d pages", ErrInvalidRange, total)
	}

	chunks := make([]Pages, 0, (total+step-1)/step)
	for start := 1; start <= total; start += step {
		end := start + step - 1
		if end > total {
			end = total
		}
		chunk, err := Range(total, start, end)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Remove returns [1..total] minus drop, in ascending order. Duplicates and
// ordering in drop are irrelevant. Fails with ErrEmptyResult if every page
// would be removed.
func Remove(total int, drop Pages) (Pages, error) {
	if total < 1 {
		return nil, fmt.Errorf("%w: document has %d pages", ErrInvalidRange, total)
	}

	dropped := make(map[int]bool, len(drop))
	for _, p := range drop {
		dropped[p] = true
	}

	pages := make(Pages, 0, total)
	for i := 1; i <= total; i++ {
		if !dropped[i] {
			pages = append(pages, i)
		}
	}

	if len(pages) == 0 {
		return nil, ErrEmptyResult
	}
	return pages, nil
}

// Keep returns want verbatim, in caller order, with duplicates preserved.
// This serves both reorder and extract: a page may legally appear twice, and
// output order is whatever the caller asked for.
//
// Unlike Range and EveryK, out-of-range indices are not a hard failure: they
// are dropped with a logged warning. This asymmetry is intentional and
// matches the documented organize policy.
func Keep(total int, want Pages) (Pages, error) {
	if total < 1 {
		return nil, fmt.Errorf("%w: document has %d pages", ErrInvalidRange, total)
	}

	pages := make(Pages, 0, len(want))
	for _, p := range want {
		if p < 1 || p > total {
			log.Warn().Int("page", p).Int("total", total).Msg("Skipping out-of-range page index")
			continue
		}
		pages = append(pages, p)
	}

	if len(pages) == 0 {
		return nil, ErrEmptyResult
	}
	return pages, nil
}
