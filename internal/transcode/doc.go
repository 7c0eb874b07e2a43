// Package transcode converts recorded WebM blobs to MP4.
//
// A Pipeline loads its Engine once per process and serializes every run. A
// Job tracks one session's conversion: at most one run at a time, and a
// successful output is reused instead of converting again.
package transcode
