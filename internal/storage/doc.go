// Package storage provides JSON-based persistence for meeting snapshots.
//
// The storage package manages local snapshot files that track meetings across
// runs, one file per spider (snapshot_<spider>.json). The default storage
// location is ~/.local/share/chi-landmarks/.
package storage
