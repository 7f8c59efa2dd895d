package core

import "context"

// EmbeddingSink is the vector-store collaborator. The core supplies
// (workbook, version, chunk, text, markdown) tuples for embedding and
// storage; it does not perform embedding itself.
//
// When replaceExisting is false the sink accumulates records across
// versions; superseded versions' records are not implicitly deleted.
type EmbeddingSink interface {
	StoreEmbeddings(ctx context.Context, records []EmbeddingRecord, replaceExisting bool) error
}
