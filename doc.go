// Package structstream extracts semantically complete array elements from a
// token-streaming model response before the response finishes.
//
// A generative model asked for one large JSON document delivers it as an
// arbitrarily fragmented sequence of text chunks that are not valid JSON at
// any intermediate point. structstream sits between that fragment stream and
// a consumer that wants fully formed, de-duplicated domain objects as early
// as possible: on every fragment it re-parses the accumulated buffer with a
// best-effort parser that implicitly closes open constructs, locates the
// target array by path, classifies which elements can no longer grow, and
// forwards each one exactly once, in index order. At stream end a strict
// decode (optionally with JSON Schema validation) is the source of truth.
//
// Typical use:
//
//	session, err := structstream.NewSession(structstream.Config{
//		TargetPath: "data.potential_causes",
//		Completeness: structstream.CompletenessPolicy{
//			RequiredFields:  []string{"id", "name"},
//			MinFieldLengths: map[string]int{"description": 20},
//			IDField:         "id",
//		},
//		OnItem:     func(item structstream.Item) { /* render */ },
//		OnComplete: func(res structstream.SessionResult) { /* finish */ },
//		OnError:    func(err error) { /* degrade */ },
//	})
//	if err != nil {
//		return err
//	}
//	err = session.Run(ctx, structstream.NewSSESource(resp.Body))
package structstream
