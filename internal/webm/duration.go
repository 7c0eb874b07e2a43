package webm

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNotWebM reports input that does not start with an EBML header followed by
// a Segment.
var ErrNotWebM = errors.New("not a webm stream")

// durationElementLen is the encoded length of a Duration element holding a
// float64: 2-byte ID, 1-byte size, 8-byte payload.
const durationElementLen = 11

type layout struct {
	segment  element
	segKids  []element
	info     element
	infoKids []element
	scale    uint64
}

func parse(data []byte) (layout, error) {
	header, err := readElement(data, 0, len(data))
	if err != nil || header.id != idEBML {
		return layout{}, ErrNotWebM
	}
	if doc, ok := find(children(data, header), idDocType); ok {
		docType := string(bytes.TrimRight(data[doc.dataStart:doc.end], "\x00"))
		if docType != "webm" && docType != "matroska" {
			return layout{}, fmt.Errorf("%w: doctype %q", ErrNotWebM, docType)
		}
	}

	segment, err := readElement(data, header.end, len(data))
	if err != nil {
		// MediaRecorder-style streams may end mid-cluster; a known segment
		// size larger than the buffer is tolerated.
		if segment.id != idSegment {
			return layout{}, ErrNotWebM
		}
		segment.end = len(data)
	}
	if segment.id != idSegment {
		return layout{}, ErrNotWebM
	}

	l := layout{segment: segment, segKids: children(data, segment), scale: defaultTimecodeScale}
	info, ok := find(l.segKids, idInfo)
	if !ok {
		return layout{}, fmt.Errorf("%w: segment has no info element", errMalformed)
	}
	if info.unknown {
		return layout{}, fmt.Errorf("%w: info element has unknown size", errMalformed)
	}
	l.info = info
	l.infoKids = children(data, info)
	if scale, ok := find(l.infoKids, idTimecodeScale); ok {
		if v := readUint(data[scale.dataStart:scale.end]); v > 0 {
			l.scale = v
		}
	}
	return l, nil
}

// ReadDuration returns the container duration, or false when none is recorded.
func ReadDuration(data []byte) (time.Duration, bool, error) {
	l, err := parse(data)
	if err != nil {
		return 0, false, err
	}
	el, ok := find(l.infoKids, idDuration)
	if !ok {
		return 0, false, nil
	}
	ticks, err := readFloat(data[el.dataStart:el.end])
	if err != nil {
		return 0, false, err
	}
	return time.Duration(math.Round(ticks * float64(l.scale))), true, nil
}

// FixDuration returns a copy of data whose Segment Info Duration equals
// durationMillis. Media payloads are never touched: an existing Duration is
// overwritten in place, otherwise one is inserted into Info, consuming a Void
// element when one is large enough and growing Info (and a known-size
// Segment) when not.
func FixDuration(data []byte, durationMillis int64) ([]byte, error) {
	if durationMillis < 0 {
		return nil, fmt.Errorf("negative duration %d", durationMillis)
	}
	out := append([]byte(nil), data...)
	l, err := parse(out)
	if err != nil {
		return nil, err
	}
	ticks := float64(durationMillis) * 1e6 / float64(l.scale)

	if el, ok := find(l.infoKids, idDuration); ok {
		if err := putFloat(out[el.dataStart:el.end], ticks); err != nil {
			return nil, err
		}
		return out, nil
	}

	durEl := make([]byte, durationElementLen)
	copy(durEl, []byte{0x44, 0x89, 0x88})
	_ = putFloat(durEl[3:], ticks)

	for _, void := range l.infoKids {
		if void.id != idVoid {
			continue
		}
		total := void.end - void.offset
		rest := total - durationElementLen
		if rest != 0 && rest < 2 {
			continue
		}
		replacement := append([]byte(nil), durEl...)
		if rest > 0 {
			filler, err := voidElement(rest)
			if err != nil {
				continue
			}
			replacement = append(replacement, filler...)
		}
		copy(out[void.offset:void.end], replacement)
		return out, nil
	}

	return growInfo(out, l, durEl)
}

func growInfo(data []byte, l layout, durEl []byte) ([]byte, error) {
	info := l.info
	newInfoSize := info.size + int64(len(durEl))
	sizeWidth := info.sizeWidth
	if newInfoSize > maxSize(sizeWidth) {
		sizeWidth = minimalSizeWidth(newInfoSize)
	}
	infoSize, err := encodeSize(newInfoSize, sizeWidth)
	if err != nil {
		return nil, err
	}
	delta := int64(len(durEl) + sizeWidth - info.sizeWidth)

	// Seek and cue positions are relative to the segment payload; anything
	// after Info moves by delta.
	shiftFrom := int64(info.end - l.segment.dataStart)
	if err := shiftPositions(data, l.segKids, shiftFrom, delta); err != nil {
		return nil, err
	}

	infoID := data[info.offset : info.offset+info.idWidth()]
	rebuilt := make([]byte, 0, len(data)+int(delta))
	rebuilt = append(rebuilt, data[:info.offset]...)
	rebuilt = append(rebuilt, infoID...)
	rebuilt = append(rebuilt, infoSize...)
	rebuilt = append(rebuilt, data[info.dataStart:info.end]...)
	rebuilt = append(rebuilt, durEl...)
	rebuilt = append(rebuilt, data[info.end:]...)

	seg := l.segment
	if seg.unknown {
		return rebuilt, nil
	}
	newSegSize := seg.size + delta
	segWidth := seg.sizeWidth
	if newSegSize > maxSize(segWidth) {
		segWidth = minimalSizeWidth(newSegSize)
	}
	segSize, err := encodeSize(newSegSize, segWidth)
	if err != nil {
		return nil, err
	}
	sizeStart := seg.offset + seg.idWidth()
	final := make([]byte, 0, len(rebuilt)+segWidth-seg.sizeWidth)
	final = append(final, rebuilt[:sizeStart]...)
	final = append(final, segSize...)
	final = append(final, rebuilt[sizeStart+seg.sizeWidth:]...)
	return final, nil
}

func shiftPositions(data []byte, segKids []element, from, delta int64) error {
	shift := func(el element) error {
		field := data[el.dataStart:el.end]
		pos := readUint(field)
		if int64(pos) < from {
			return nil
		}
		return putUint(field, pos+uint64(delta))
	}
	for _, kid := range segKids {
		switch kid.id {
		case idSeekHead:
			for _, seek := range children(data, kid) {
				if seek.id != idSeek {
					continue
				}
				if pos, ok := find(children(data, seek), idSeekPosition); ok {
					if err := shift(pos); err != nil {
						return err
					}
				}
			}
		case idCues:
			for _, point := range children(data, kid) {
				if point.id != idCuePoint {
					continue
				}
				for _, track := range children(data, point) {
					if track.id != idCueTrackPositions {
						continue
					}
					if pos, ok := find(children(data, track), idCueClusterPosition); ok {
						if err := shift(pos); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}
