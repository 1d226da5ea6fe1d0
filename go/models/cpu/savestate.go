package cpu

import (
	"bytes"
	"encoding/binary"
	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"hash/crc32"
	"io"
)

// savestate format, big endian:
//
// header
// [4]byte("HCSS"), uint32(version), uint32(crc32 of compressed body), uint32(length of compressed body)
//
// snappy-compressed body
// uint32(number of registers), 1..num: uint32(enum), uint64(value)
// uint32(number of pages), 1..num: uint64(addr), uint32(prot), uint16(len) desc, uint64(len) data
//
// Hooks are engine configuration, not engine state, and are never saved.

const (
	saveMagic   = "HCSS"
	saveVersion = 1
)

var saveOrder = binary.BigEndian

type saveHeader struct {
	Magic   string `struc:"[4]byte"`
	Version uint32
	Crc     uint32
	Length  uint32
}

type saveReg struct {
	Enum uint32
	Val  uint64
}

type savePage struct {
	Addr    uint64
	Prot    uint32
	DescLen uint16 `struc:"uint16,sizeof=Desc"`
	Desc    string
	Size    uint64 `struc:"uint64,sizeof=Data"`
	Data    []byte
}

type saveBody struct {
	NumRegs  uint32 `struc:"uint32,sizeof=Regs"`
	Regs     []saveReg
	NumPages uint32 `struc:"uint32,sizeof=Pages"`
	Pages    []savePage
}

// Save serializes register and memory state.
func Save(regs *Regs, mem *Mem) ([]byte, error) {
	body := &saveBody{}
	for _, enum := range regs.Enums() {
		body.Regs = append(body.Regs, saveReg{Enum: uint32(enum), Val: regs.vals[enum]})
	}
	for _, pg := range mem.sim.Mem {
		body.Pages = append(body.Pages, savePage{Addr: pg.Addr, Prot: uint32(pg.Prot), Desc: pg.Desc, Data: pg.Data})
	}
	var raw bytes.Buffer
	if err := struc.PackWithOrder(&raw, body, saveOrder); err != nil {
		return nil, errors.Wrap(err, "failed to pack savestate body")
	}
	data := snappy.Encode(nil, raw.Bytes())

	var out bytes.Buffer
	header := &saveHeader{
		Magic:   saveMagic,
		Version: saveVersion,
		Crc:     crc32.ChecksumIEEE(data),
		Length:  uint32(len(data)),
	}
	if err := struc.PackWithOrder(&out, header, saveOrder); err != nil {
		return nil, errors.Wrap(err, "failed to pack savestate header")
	}
	out.Write(data)
	return out.Bytes(), nil
}

// Restore replaces register and memory state with a savestate produced by Save.
// Nothing is modified if the savestate is invalid.
func Restore(data []byte, regs *Regs, mem *Mem) error {
	r := bytes.NewReader(data)
	var header saveHeader
	if err := struc.UnpackWithOrder(r, &header, saveOrder); err != nil {
		return errors.Wrap(err, "failed to unpack savestate header")
	}
	if header.Magic != saveMagic {
		return errors.New("invalid savestate magic")
	}
	if header.Version != saveVersion {
		return errors.Errorf("unsupported savestate version %d", header.Version)
	}
	if int64(header.Length) > int64(r.Len()) {
		return errors.New("truncated savestate")
	}
	compressed := make([]byte, header.Length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return errors.Wrap(err, "failed to read savestate body")
	}
	if crc32.ChecksumIEEE(compressed) != header.Crc {
		return errors.New("savestate checksum mismatch")
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return errors.Wrap(err, "failed to decompress savestate")
	}
	var body saveBody
	if err := struc.UnpackWithOrder(bytes.NewReader(raw), &body, saveOrder); err != nil {
		return errors.Wrap(err, "failed to unpack savestate body")
	}
	for _, reg := range body.Regs {
		if _, ok := regs.vals[int(reg.Enum)]; !ok {
			return errors.Errorf("savestate has unknown register %d", reg.Enum)
		}
	}
	for _, reg := range body.Regs {
		regs.vals[int(reg.Enum)] = reg.Val & regs.mask
	}
	sim := &MemSim{}
	for _, pg := range body.Pages {
		sim.Mem = append(sim.Mem, &Page{Addr: pg.Addr, Size: uint64(len(pg.Data)), Prot: int(pg.Prot), Data: pg.Data, Desc: pg.Desc})
	}
	mem.sim = sim
	return nil
}
