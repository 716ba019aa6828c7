// Package event provides the civic meeting record and the helpers every
// meeting source shares.
//
// The event package handles meeting representation (dates, clock times,
// locations, links), deterministic ID generation from the spider name, start
// and meeting name, status inference, and change detection through
// snapshot-based diffing across runs.
package event
