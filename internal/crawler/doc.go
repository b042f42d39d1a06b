// Package crawler provides a breadth-first web crawler built on the query
// pipeline.
//
// # Architecture
//
// The crawler package is designed around the Spider type, which walks a site
// from a root URL. It keeps a FIFO queue of URLs and a visited set, fetches
// one page at a time through query.Read and expands links only from HTML
// pages on the root's host.
//
// Design decision: Pages are yielded through an iter.Seq2 instead of being
// collected into a slice, so a caller can stop a crawl at any page with a
// plain break.
//
// # Components
//
//   - Spider: The crawler that coordinates the breadth-first walk
//   - Parser: HTML parser that extracts the title, meta tags and links
//   - PathPatterns: Glob based follow predicate for URL paths
//   - Batch: Runs several crawls concurrently, one session per root
//
// # Tolerance
//
// A page that fails to fetch or answers with a non-2xx status is dropped and
// counted in SpiderStats; the crawl goes on. Only context cancellation ends
// a crawl with an error.
//
// # Politeness
//
//   - Delays between requests (WithDelay, backed by a rate limiter)
//   - One request at a time per spider
//   - Depth and page limits (WithMaxDepth, WithMaxPages)
//   - Body size limit (WithMaxBodySize)
//
// # Usage
//
//	spider := crawler.NewSpider(crawler.WithMaxDepth(2))
//	for page, err := range spider.Crawl(ctx, sess, "https://example.com/") {
//		if err != nil {
//			return err
//		}
//		fmt.Println(page.Info.URL, page.Content.Title)
//	}
package crawler
