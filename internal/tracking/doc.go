// Package tracking holds the per-run Track Ledger.
//
// A Ledger turns per-frame observations into Track state: sighting counts,
// displacement from the first centre, the best local plate read, a periodic
// colour signature, and the golden frame (the largest crop that cleared the
// sharpness floor). The ledger performs no I/O and has a single writer, the
// pipeline loop that owns it.
package tracking
