// Package pagination walks paginated BigCommerce collections and fans
// per-record sub-fetches out under the call budget.
//
// The Engine requests pages 1, 2, 3, ... through a retry policy and pauses
// after every page for the delay derived from that page's rate limit state.
// Paging stops when the server answers with no content (the page is
// discarded) or with a page shorter than the page size (the page is kept).
// There is no page ceiling: an API that keeps returning full pages keeps the
// walk going. Termination is the API's contract.
//
// Example usage:
//
//	engine := pagination.NewEngine(pagination.Concurrent{}, readPolicy, 250, logger)
//	orders, err := pagination.FetchAll(ctx, engine, "orders", fetchOrdersPage)
//
// ForEach and Map run one unit of work per parent record with a concurrency
// width chosen by Width: the configured maximum when the parent page reported
// an unlimited budget, otherwise 1. A failing unit never cancels its
// siblings; all failures are reported together in an AggregateError.
//
// Both the blocking and the cancellable mode share these algorithms. They
// differ only in the Runner that implements waiting and running many units.
package pagination
