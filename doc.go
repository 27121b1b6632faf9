// Package quiver is an embeddable vector similarity index.
//
// Two backends implement the same contract: an exact brute-force scan and
// an approximate HNSW graph. Both score by cosine similarity, Euclidean
// distance or dot product, and both export self-describing snapshots that
// preserve the collection they were created for.
//
//	idx, err := quiver.New(quiver.BackendHNSW, "articles", 128)
//	if err != nil { ... }
//	rec := model.NewVectorRecord(embedding).WithExternalID("doc-1")
//	if err := idx.Insert(ctx, rec); err != nil { ... }
//	results, err := idx.Search(ctx, query, 10, nil)
//
// Graph indexes never delete records; export a snapshot, drop records with
// Without and restore the result instead.
package quiver
