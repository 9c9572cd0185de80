// Package warmup embeds the match text of every stored post in batches so
// that an embedding cache is populated before the next ingestion run has to
// rebuild the theme pool.
//
// It is useful after switching embedding models or pointing the service at
// a fresh cache directory.
package warmup
