// Package records owns Detection Records and the upsert rule that decides
// when a new candidate replaces the live record for a track key.
//
// MemoryRepository scopes records to one chunk run until the merge;
// StoreRepository writes through to the detections table for a whole video.
package records
