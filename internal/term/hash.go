package term

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

const (
	tagNil byte = iota
	tagNumber
	tagString
	tagBool
	tagList
	tagTerm
	tagOther
	tagVariable
	tagLiteral
	tagNegated
)

type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func newHasher() *hasher {
	return &hasher{d: xxhash.New()}
}

func (h *hasher) tag(b byte) {
	h.buf[0] = b
	_, _ = h.d.Write(h.buf[:1])
}

func (h *hasher) uint64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
}

func (h *hasher) string(s string) {
	h.uint64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func (h *hasher) value(v any) {
	switch x := v.(type) {
	case nil:
		h.tag(tagNil)
	case float64:
		h.tag(tagNumber)
		if x == 0 {
			x = 0 // folds -0 into 0
		}
		h.uint64(math.Float64bits(x))
	case string:
		h.tag(tagString)
		h.string(x)
	case bool:
		h.tag(tagBool)
		if x {
			h.uint64(1)
		} else {
			h.uint64(0)
		}
	case []Term:
		h.tag(tagList)
		h.uint64(uint64(len(x)))
		for _, t := range x {
			h.term(t)
		}
	case Term:
		h.tag(tagTerm)
		h.term(x)
	default:
		h.tag(tagOther)
		h.string(fmt.Sprintf("%T:%p", x, x))
	}
}

func (h *hasher) term(t Term) {
	if IsEmpty(t) {
		h.tag(tagNil)
		return
	}
	h.uint64(t.Hash())
}

func (h *hasher) sum() uint64 {
	return h.d.Sum64()
}
