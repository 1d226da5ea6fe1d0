package loader

import (
	"encoding/binary"
)

// SegmentData is a region of a loadable image, read lazily through DataFunc.
type SegmentData struct {
	Addr, Size uint64
	Prot       int
	Desc       string
	DataFunc   func() ([]byte, error)
}

func (s *SegmentData) Data() ([]byte, error) {
	return s.DataFunc()
}

func (s *SegmentData) ContainsVirt(addr uint64) bool {
	return s.Addr <= addr && addr < s.Addr+s.Size
}

type LoaderBase struct {
	arch      string
	bits      int
	byteOrder binary.ByteOrder
	entry     uint64
}

func (l *LoaderBase) Arch() string {
	return l.arch
}

func (l *LoaderBase) Bits() int {
	return l.bits
}

func (l *LoaderBase) ByteOrder() binary.ByteOrder {
	if l.byteOrder == nil {
		return binary.LittleEndian
	}
	return l.byteOrder
}

func (l *LoaderBase) Entry() uint64 {
	return l.entry
}
