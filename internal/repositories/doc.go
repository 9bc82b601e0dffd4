// Package repositories implements SQLite persistence for the classification cache.
//
// [ClassificationRepository] stores one verdict per (album id, canonical key) pair with a fixed lifetime
// (30 days by default). Keys come from the canonical work descriptor, never the raw query, so two
// phrasings of the same request share entries. Upserts make concurrent writes of the same key safe.
package repositories
