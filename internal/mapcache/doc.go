// Package mapcache keeps a bounded set of read-only file mappings open.
//
// Mappings are reference counted: a mapping handed out by Acquire is never
// unmapped before its release function runs, even when it is the least
// recently used entry. Idle mappings beyond the capacity are unmapped in
// LRU order. A capacity of zero maps and unmaps a file around every access;
// a negative capacity retains every mapping until Close.
package mapcache
