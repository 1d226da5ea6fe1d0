package loader

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/hookcorn/go/cpu/bpf"
	"github.com/lunixbochs/hookcorn/go/models/cpu"
)

// BpfLoader loads a raw sock_filter program and the packet it filters.
type BpfLoader struct {
	LoaderBase
	code   []byte
	packet []byte
}

func readFile(filename string, allowEmpty bool) ([]byte, error) {
	p, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	if len(p) == 0 && !allowEmpty {
		return nil, errors.Errorf("%s is empty", filename)
	}
	return p, nil
}

func NewBpfLoader(filter, packet string) (*BpfLoader, error) {
	code, err := readFile(filter, false)
	if err != nil {
		return nil, errors.Wrap(err, "could not load filter")
	}
	if len(code)%bpf.InsSize != 0 {
		return nil, errors.Errorf("filter size %d is not a multiple of %d", len(code), bpf.InsSize)
	}
	// an empty packet is valid and fails every load
	data, err := readFile(packet, true)
	if err != nil {
		return nil, errors.Wrap(err, "could not load packet")
	}
	return NewBpfLoaderBytes(code, data), nil
}

// NewBpfLoaderBytes is NewBpfLoader for in-memory images.
func NewBpfLoaderBytes(code, packet []byte) *BpfLoader {
	return &BpfLoader{
		LoaderBase: LoaderBase{
			arch:      "bpf",
			bits:      32,
			byteOrder: binary.LittleEndian,
			entry:     bpf.ProgramBase,
		},
		code:   code,
		packet: packet,
	}
}

func (r *BpfLoader) Segments() ([]SegmentData, error) {
	var segs []SegmentData

	// Code segment
	segs = append(segs, SegmentData{
		Addr: bpf.ProgramBase,
		Size: uint64(len(r.code)),
		Prot: cpu.PROT_READ | cpu.PROT_EXEC,
		Desc: "filter",
		DataFunc: func() ([]byte, error) {
			return r.code, nil
		},
	})

	// Packet segment
	segs = append(segs, SegmentData{
		Addr: bpf.PacketBase,
		Size: uint64(len(r.packet)),
		Prot: cpu.PROT_READ,
		Desc: "packet",
		DataFunc: func() ([]byte, error) {
			return r.packet, nil
		},
	})
	return segs, nil
}

// Load maps every segment into c.
func (r *BpfLoader) Load(c *bpf.Cpu) error {
	segs, err := r.Segments()
	if err != nil {
		return err
	}
	for _, seg := range segs {
		data, err := seg.Data()
		if err != nil {
			return errors.Wrapf(err, "failed to read %s segment", seg.Desc)
		}
		switch seg.Addr {
		case bpf.ProgramBase:
			err = c.LoadProgram(data)
		case bpf.PacketBase:
			err = c.SetPacket(data)
		default:
			err = errors.Errorf("unexpected segment at %#x", seg.Addr)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to load %s segment", seg.Desc)
		}
	}
	return nil
}
