package paginate

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrPaginationStalled is returned when a page hands back the token it was
// fetched with.
var ErrPaginationStalled = errors.New("pagination stalled: continuation token did not advance")

// Page is one page of a listing. A nil ContinuationToken marks the last page.
type Page[T any] struct {
	Items             []T
	ContinuationToken *string
}

// Accumulator holds the state of a drain in progress.
type Accumulator[T any] struct {
	Items             []T
	Done              bool
	ContinuationToken *string
}

// Add appends page to the accumulator. It fails if the page did not advance
// past token.
func (a *Accumulator[T]) Add(token *string, page Page[T]) error {
	if page.ContinuationToken != nil && token != nil && *page.ContinuationToken == *token {
		return ErrPaginationStalled
	}
	a.Items = append(a.Items, page.Items...)
	a.ContinuationToken = page.ContinuationToken
	a.Done = page.ContinuationToken == nil
	return nil
}

// FetchFunc fetches the page that starts at token; nil means the first page.
type FetchFunc[T any] func(ctx context.Context, token *string) (Page[T], error)

// FetchAll drains a paginated listing one page at a time. Any failure,
// including cancellation between pages, discards what was fetched so far.
func FetchAll[T any](ctx context.Context, logger zerolog.Logger, fetch FetchFunc[T]) ([]T, error) {
	var acc Accumulator[T]
	pages := 0

	for !acc.Done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		token := acc.ContinuationToken
		page, err := fetch(ctx, token)
		if err != nil {
			logger.Error().Err(err).Int("page", pages+1).Msg("Failed to fetch page")
			return nil, err
		}
		if err := acc.Add(token, page); err != nil {
			logger.Error().Err(err).Str("token", *token).Msg("Failed to drain listing")
			return nil, err
		}
		pages++
	}

	logger.Debug().Int("pages", pages).Int("items", len(acc.Items)).Msg("Listing drained")
	return acc.Items, nil
}

// Token returns a pointer to s, or nil when s is empty. Useful for SDKs that
// report the last page with an empty token.
func Token(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
