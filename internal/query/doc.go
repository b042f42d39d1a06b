// Package query builds lazy, composable fetch pipelines.
//
// A Query[T] describes a stage (a request, a content reader, a combinator)
// together with its predecessors. Queries are immutable values; modifiers
// such as Configure or Filter return a new Query. Nothing is sent until a
// driver runs the query:
//
//	q := query.Links(query.HTML(query.Get("https://example.com/")), "")
//	for link, err := range query.Run(ctx, q) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(link.Content)
//	}
//
// # Execution
//
// Stages run strictly sequentially over one fetch.Session. A request stage
// applies its setup (configuration transform, predicate, tolerance) and
// hands the response downstream; the body is closed as soon as the
// downstream consumer returns. In strict mode a non-2xx response fails the
// run with a *fetch.StatusError; a response rejected by a predicate is
// dropped silently.
//
// Then runs dependent queries only after its predecessor finished, so a
// failure upstream means no dependent request is ever sent. Dependent
// queries inherit the setup of their ancestors.
//
// Setup attached to a stage that does not send requests itself (Read, Map,
// Accept, ...) applies to the request stages feeding it.
package query
