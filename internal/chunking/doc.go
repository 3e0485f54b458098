// Package chunking splits long videos into overlapping time segments, runs
// an isolated pipeline per segment, and merges the per-segment records into
// one video-scoped result.
//
// Segments never share ledgers or record sets. The only shared collaborator
// is the classifier gate, whose quota spans the whole video. Merge re-keys
// tracks to "c<chunk>-t<id>" and shifts timestamps by the segment start.
// Vehicles crossing a boundary can appear once in each neighbouring segment;
// Merge keeps both rows.
package chunking
