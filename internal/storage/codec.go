package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"seamcraft/internal/world"
)

var ErrCorrupt = errors.New("corrupt sector payload")

const (
	payloadMagic   = "SCS"
	payloadVersion = 1

	columns     = world.SectorSizeXZ * world.SectorSizeXZ
	columnBytes = 2 + 2 + 1 + 4
	headerBytes = len(payloadMagic) + 1
	payloadSize = headerBytes + world.SectorVolume*4 + columns*columnBytes
)

// encodePayload lays the sector out in planes: block ids, bitfields, light,
// then the per-column flatland.
func encodePayload(blocks *[world.SectorVolume]world.Block, flat *world.Flatland) []byte {
	buf := make([]byte, payloadSize)
	copy(buf, payloadMagic)
	buf[len(payloadMagic)] = payloadVersion

	ids := buf[headerBytes:]
	bits := ids[world.SectorVolume*2:]
	light := bits[world.SectorVolume:]
	cols := light[world.SectorVolume:]
	for i := range blocks {
		b := &blocks[i]
		binary.LittleEndian.PutUint16(ids[i*2:], uint16(b.ID))
		bits[i] = b.Bits
		light[i] = b.Light
	}
	for bx := 0; bx < world.SectorSizeXZ; bx++ {
		for bz := 0; bz < world.SectorSizeXZ; bz++ {
			fd := flat.At(bx, bz)
			c := cols[(bx*world.SectorSizeXZ+bz)*columnBytes:]
			binary.LittleEndian.PutUint16(c[0:], uint16(fd.GroundLevel))
			binary.LittleEndian.PutUint16(c[2:], uint16(fd.SkyLevel))
			c[4] = fd.Terrain
			binary.LittleEndian.PutUint32(c[5:], fd.Color)
		}
	}
	return buf
}

// decodePayload fills dst from a buffer written by encodePayload.
func decodePayload(buf []byte, dst *world.GenData) error {
	if len(buf) != payloadSize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrCorrupt, len(buf), payloadSize)
	}
	if string(buf[:len(payloadMagic)]) != payloadMagic {
		return fmt.Errorf("%w: bad magic %q", ErrCorrupt, buf[:len(payloadMagic)])
	}
	if v := buf[len(payloadMagic)]; v != payloadVersion {
		return fmt.Errorf("%w: version %d", ErrCorrupt, v)
	}

	ids := buf[headerBytes:]
	bits := ids[world.SectorVolume*2:]
	light := bits[world.SectorVolume:]
	cols := light[world.SectorVolume:]
	for i := range dst.Blocks {
		id := world.BlockType(binary.LittleEndian.Uint16(ids[i*2:]))
		if id >= world.NumBlockTypes {
			return fmt.Errorf("%w: block id %d", ErrCorrupt, id)
		}
		dst.Blocks[i] = world.Block{ID: id, Bits: bits[i], Light: light[i]}
	}
	for bx := 0; bx < world.SectorSizeXZ; bx++ {
		for bz := 0; bz < world.SectorSizeXZ; bz++ {
			c := cols[(bx*world.SectorSizeXZ+bz)*columnBytes:]
			*dst.Flat.At(bx, bz) = world.FlatData{
				GroundLevel: int16(binary.LittleEndian.Uint16(c[0:])),
				SkyLevel:    int16(binary.LittleEndian.Uint16(c[2:])),
				Terrain:     c[4],
				Color:       binary.LittleEndian.Uint32(c[5:]),
			}
		}
	}
	return nil
}
