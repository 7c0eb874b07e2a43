// Package webm rewrites the Segment Info Duration of WebM (Matroska) files.
//
// Live encoders write the header before the length of the recording is known,
// so the stored Duration is missing or zero and players cannot seek. FixDuration
// patches the header without touching clusters.
package webm
