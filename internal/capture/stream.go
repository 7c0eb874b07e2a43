package capture

import "sync"

// Stream is an ordered set of tracks.
type Stream struct {
	mu     sync.Mutex
	tracks []*Track
}

// NewStream groups tracks into a stream.
func NewStream(tracks ...*Track) *Stream {
	s := &Stream{}
	for _, t := range tracks {
		s.AddTrack(t)
	}
	return s
}

// AddTrack appends t. Nil tracks are ignored.
func (s *Stream) AddTrack(t *Track) {
	if t == nil {
		return
	}
	s.mu.Lock()
	s.tracks = append(s.tracks, t)
	s.mu.Unlock()
}

// Tracks returns a snapshot of every track.
func (s *Stream) Tracks() []*Track {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Track(nil), s.tracks...)
}

func (s *Stream) AudioTracks() []*Track { return s.byKind(KindAudio) }

func (s *Stream) VideoTracks() []*Track { return s.byKind(KindVideo) }

func (s *Stream) byKind(kind Kind) []*Track {
	var out []*Track
	for _, t := range s.Tracks() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Stop releases every track.
func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
