package webm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Matroska element IDs, with their VINT marker bits kept.
const (
	idEBML               = 0x1A45DFA3
	idDocType            = 0x4282
	idSegment            = 0x18538067
	idSeekHead           = 0x114D9B74
	idSeek               = 0x4DBB
	idSeekPosition       = 0x53AC
	idInfo               = 0x1549A966
	idTimecodeScale      = 0x2AD7B1
	idDuration           = 0x4489
	idVoid               = 0xEC
	idCluster            = 0x1F43B675
	idCues               = 0x1C53BB6B
	idCuePoint           = 0xBB
	idCueTrackPositions  = 0xB7
	idCueClusterPosition = 0xF1
)

const defaultTimecodeScale = 1_000_000

var errMalformed = errors.New("malformed ebml")

// element locates one EBML element inside a buffer.
type element struct {
	id        uint32
	offset    int // first byte of the ID
	sizeWidth int
	dataStart int
	size      int64
	unknown   bool
	end       int // dataStart+size, or the parse limit for unknown sizes
}

func (e element) idWidth() int {
	return e.dataStart - e.offset - e.sizeWidth
}

func vintWidth(first byte) int {
	for w := 1; w <= 8; w++ {
		if first&(0x80>>(w-1)) != 0 {
			return w
		}
	}
	return 0
}

func readID(b []byte, off int) (uint32, int, error) {
	if off >= len(b) {
		return 0, 0, fmt.Errorf("%w: id past end at %d", errMalformed, off)
	}
	w := vintWidth(b[off])
	if w == 0 || w > 4 || off+w > len(b) {
		return 0, 0, fmt.Errorf("%w: bad id at %d", errMalformed, off)
	}
	var id uint32
	for i := 0; i < w; i++ {
		id = id<<8 | uint32(b[off+i])
	}
	return id, w, nil
}

func readSize(b []byte, off int) (int64, int, bool, error) {
	if off >= len(b) {
		return 0, 0, false, fmt.Errorf("%w: size past end at %d", errMalformed, off)
	}
	w := vintWidth(b[off])
	if w == 0 || off+w > len(b) {
		return 0, 0, false, fmt.Errorf("%w: bad size at %d", errMalformed, off)
	}
	value := uint64(b[off] & (0xFF >> w))
	for i := 1; i < w; i++ {
		value = value<<8 | uint64(b[off+i])
	}
	allOnes := uint64(1)<<(7*uint(w)) - 1
	if value == allOnes {
		return 0, w, true, nil
	}
	if value > math.MaxInt32 {
		return 0, 0, false, fmt.Errorf("%w: size %d too large at %d", errMalformed, value, off)
	}
	return int64(value), w, false, nil
}

// readElement parses the element header at off. limit bounds the element.
func readElement(b []byte, off, limit int) (element, error) {
	id, idw, err := readID(b, off)
	if err != nil {
		return element{}, err
	}
	size, sw, unknown, err := readSize(b, off+idw)
	if err != nil {
		return element{}, err
	}
	el := element{
		id:        id,
		offset:    off,
		sizeWidth: sw,
		dataStart: off + idw + sw,
		size:      size,
		unknown:   unknown,
	}
	if unknown {
		el.end = limit
	} else {
		el.end = el.dataStart + int(size)
	}
	if el.end > limit {
		return el, fmt.Errorf("%w: element 0x%X overruns parent", errMalformed, id)
	}
	return el, nil
}

// children lists the direct children of parent. Iteration stops after a child
// of unknown size (its extent cannot be skipped) or at a truncated trailing
// child.
func children(b []byte, parent element) []element {
	var out []element
	off := parent.dataStart
	for off < parent.end {
		child, err := readElement(b, off, parent.end)
		if err != nil {
			break
		}
		out = append(out, child)
		if child.unknown {
			break
		}
		off = child.end
	}
	return out
}

func find(els []element, id uint32) (element, bool) {
	for _, el := range els {
		if el.id == id {
			return el, true
		}
	}
	return element{}, false
}

func maxSize(width int) int64 {
	return int64(1)<<(7*uint(width)) - 2
}

// encodeSize writes v as a VINT of the given width.
func encodeSize(v int64, width int) ([]byte, error) {
	if width < 1 || width > 8 || v < 0 || v > maxSize(width) {
		return nil, fmt.Errorf("size %d does not fit in %d bytes", v, width)
	}
	out := make([]byte, width)
	u := uint64(v)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(u)
		u >>= 8
	}
	out[0] |= 0x80 >> (width - 1)
	return out, nil
}

func minimalSizeWidth(v int64) int {
	for w := 1; w <= 8; w++ {
		if v <= maxSize(w) {
			return w
		}
	}
	return 8
}

func encodeID(id uint32) []byte {
	switch {
	case id > 0xFFFFFF:
		return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	case id > 0xFFFF:
		return []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	case id > 0xFF:
		return []byte{byte(id >> 8), byte(id)}
	default:
		return []byte{byte(id)}
	}
}

func readUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// putUint rewrites b with v, keeping the width of b.
func putUint(b []byte, v uint64) error {
	if len(b) < 8 && v>>(8*uint(len(b))) != 0 {
		return fmt.Errorf("value %d does not fit in %d bytes", v, len(b))
	}
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return nil
}

func readFloat(b []byte) (float64, error) {
	switch len(b) {
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("%w: float of %d bytes", errMalformed, len(b))
	}
}

func putFloat(b []byte, v float64) error {
	switch len(b) {
	case 4:
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
	case 8:
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
	default:
		return fmt.Errorf("%w: float of %d bytes", errMalformed, len(b))
	}
	return nil
}

// voidElement builds a Void element occupying exactly total bytes.
func voidElement(total int) ([]byte, error) {
	for w := 1; w <= 8; w++ {
		payload := total - 1 - w
		if payload < 0 {
			break
		}
		if int64(payload) <= maxSize(w) {
			size, err := encodeSize(int64(payload), w)
			if err != nil {
				return nil, err
			}
			out := make([]byte, 0, total)
			out = append(out, idVoid)
			out = append(out, size...)
			return append(out, make([]byte, payload)...), nil
		}
	}
	return nil, fmt.Errorf("cannot build a void of %d bytes", total)
}
