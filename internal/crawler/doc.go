// Package crawler mirrors a website to local storage.
//
// # Architecture
//
// The package is built around the Spider type, which owns one mirror run.
// It pulls (url, depth) items from an explicit work list, persists each
// fetched resource under the output root, and pushes the same-host
// references found inside it back onto the work list.
//
// Design decision: We keep the whole engine in one package because:
//  1. The components only make sense together (normalize, map, fetch, extract)
//  2. The Spider needs unexported access to each component's options
//  3. Each component is still independently testable through its own type
//
// # Components
//
//   - Normalize / Scope: canonical URL keys and the same-host filter
//   - PathMapper: deterministic URL to local path mapping
//   - Extractor: HTML, inline style and CSS reference discovery
//   - Fetcher: GET + persist, best-effort HEAD for the content type
//   - Spider: visited set, depth bound, work list, politeness delay
//
// # Failure policy
//
// Every failure is local to one resource. A link that does not normalize is
// dropped, a resource that does not download is recorded and not expanded,
// and content that does not parse yields no links. Only cancellation of the
// context stops a run early, and even then the partial report is returned.
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher, mapper, crawler.WithMaxDepth(20))
//	report, err := spider.Crawl(ctx, "https://example.com/")
package crawler
