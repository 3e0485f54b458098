// Package admission implements the per-frame policy that moves tracks out of
// ACTIVE.
//
// Transitions are ACTIVE→READY, ACTIVE→DROPPED and READY→DROPPED; BATCHED
// (set by the batch manager) and DROPPED are terminal. The frame thresholds
// depend on the sensitivity tier and differ between the in-loop idle check and
// the end-of-stream flush.
package admission
