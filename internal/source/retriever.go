package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRecords is the absolute result ceiling enforced by the
	// upstream query APIs. Retrieval past this point is truncated.
	DefaultMaxRecords = 50_000

	// DefaultPageSize is the per-call page size the query APIs accept.
	DefaultPageSize = 5_000
)

// ErrInvalidRange is returned before any network call when start >= end.
var ErrInvalidRange = errors.New("invalid range: start must precede end")

// Result is the materialized output of one retrieval.
type Result struct {
	Records []RawRecord
	Pages   int
	// Truncated is true when retrieval stopped at the record cap rather
	// than exhausting the source. Callers must surface this as a warning:
	// a truncated result is NOT complete for the window.
	Truncated bool
}

// Retriever drives continuation-token pagination against one source's
// query endpoint until the source is exhausted or the record cap is hit.
type Retriever struct {
	client     QueryClient
	kind       Kind
	pageSize   int
	maxRecords int
	logger     *zap.Logger
}

// NewRetriever creates a Retriever for one source. Zero pageSize or
// maxRecords fall back to the API defaults.
func NewRetriever(client QueryClient, kind Kind, pageSize, maxRecords int, logger *zap.Logger) *Retriever {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Retriever{
		client:     client,
		kind:       kind,
		pageSize:   pageSize,
		maxRecords: maxRecords,
		logger:     logger,
	}
}

// Retrieve fetches every record for (kind, start, end), threading the
// continuation token across page calls.
//
// Termination:
//   - a page shorter than pageSize, or an empty continuation token,
//     means the source is exhausted
//   - reaching maxRecords stops retrieval after the current page and
//     marks the result truncated (the final page is kept whole)
//
// Any page-call error aborts retrieval for this source; no retries.
func (r *Retriever) Retrieve(ctx context.Context, start, end time.Time) (*Result, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start=%s end=%s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	res := &Result{}
	token := ""

	for {
		page, err := r.client.QueryPage(ctx, PageQuery{
			Kind:     r.kind,
			Start:    start,
			End:      end,
			PageSize: r.pageSize,
			Token:    token,
		})
		if err != nil {
			return nil, fmt.Errorf("retrieve %s page %d: %w", r.kind, res.Pages+1, err)
		}

		res.Records = append(res.Records, page.Records...)
		res.Pages++

		// Exhaustion wins over the cap: a short page means the source has
		// nothing further, so the result is complete even at maxRecords.
		if len(page.Records) < r.pageSize || page.NextToken == "" {
			return res, nil
		}

		if len(res.Records) >= r.maxRecords {
			res.Truncated = true
			r.logger.Warn("record cap reached, results truncated",
				zap.String("source", r.kind.String()),
				zap.Int("records", len(res.Records)),
				zap.Int("max_records", r.maxRecords),
			)
			return res, nil
		}
		token = page.NextToken
	}
}
