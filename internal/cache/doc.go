// Package cache defines the disk-backed fixture store used for offline
// replay. Each fixture is a single flat file inside a configured directory,
// named by the browser package's URL encoding and holding the raw response
// body byte for byte. The store exposes read/write primitives with safe
// semantics (temp file + rename) plus an enumeration used by the fixture
// replay server. Lifetimes are caller-managed: the store never expires or
// cleans up entries on its own.
package cache
