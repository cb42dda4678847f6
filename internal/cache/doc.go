// Package cache implements the on-disk artifact cache: a fixed set of
// schema-versioned buckets under one root, freshness checks driven by the
// session's refresh policy, atomic publication (rename into the archive
// bucket, then swap a symlink at the logical location), package-scoped
// removal and mark-and-sweep pruning of unreferenced archives. Single-file
// entries such as index responses are written with temp file + rename.
package cache
