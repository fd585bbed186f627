// Package simcore implements the discrete-event batch cluster scheduler
// simulator: a tie-breaking event queue, a node-space timeline with
// EASY-style conservative backfilling, a virtual-time campaign accounting
// engine, and the OStrich and Fairshare priority policies that consume it.
//
// The package is deterministic and single-threaded: two runs over
// identical inputs with the same policy produce byte-identical event
// streams. Callers own workload parsing, CLI surface, and output file
// layout; simcore only consumes an already-validated job/user/cluster
// description and produces an ordered stream of Records plus a
// Diagnostics summary.
package simcore
