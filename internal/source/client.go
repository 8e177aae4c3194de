package source

import (
	"context"
	"encoding/json"
	"time"
)

// RawRecord is one event payload exactly as the source API returned it.
// Its shape varies per source; only the classifier for that source parses it.
type RawRecord = json.RawMessage

// PageQuery describes one page request against a source query endpoint.
type PageQuery struct {
	Kind     Kind
	Start    time.Time
	End      time.Time
	PageSize int
	// Token is the continuation token from the previous page.
	// Empty on the first call.
	Token string
}

// Page is one chunk of results from a source query endpoint.
type Page struct {
	Records []RawRecord
	// NextToken continues the query on the following call.
	// Empty when the source has nothing further to return.
	NextToken string
}

// QueryClient issues a single page call against a source query endpoint.
// Authentication is established by the caller before the first call.
type QueryClient interface {
	QueryPage(ctx context.Context, q PageQuery) (*Page, error)
}
