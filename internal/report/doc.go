// Package report renders crawl reports as terminal text (SimpleWriter),
// GitHub Flavored Markdown (MarkdownWriter) or JSON (JSONWriter,
// FullJSONWriter). The report data itself lives in the model package, so a
// new format only needs a new Writer.
package report
