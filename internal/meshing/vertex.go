package meshing

import "encoding/binary"

// VertexSize is the encoded size of one Vertex in bytes.
const VertexSize = 16

// Vertex is one quad corner. Positions are in sector-local block units.
type Vertex struct {
	X, Y, Z int16
	Face    uint8
	AO      uint8
	Sky     uint8
	Torch   uint8
	Tile    uint16
	Color   uint32
}

// Put encodes v little-endian into dst[:VertexSize].
func (v Vertex) Put(dst []byte) {
	_ = dst[VertexSize-1]
	binary.LittleEndian.PutUint16(dst[0:], uint16(v.X))
	binary.LittleEndian.PutUint16(dst[2:], uint16(v.Y))
	binary.LittleEndian.PutUint16(dst[4:], uint16(v.Z))
	dst[6] = v.Face
	dst[7] = v.AO
	dst[8] = v.Sky
	dst[9] = v.Torch
	binary.LittleEndian.PutUint16(dst[10:], v.Tile)
	binary.LittleEndian.PutUint32(dst[12:], v.Color)
}

// DecodeVertex reads a vertex written by Put.
func DecodeVertex(src []byte) Vertex {
	_ = src[VertexSize-1]
	return Vertex{
		X:     int16(binary.LittleEndian.Uint16(src[0:])),
		Y:     int16(binary.LittleEndian.Uint16(src[2:])),
		Z:     int16(binary.LittleEndian.Uint16(src[4:])),
		Face:  src[6],
		AO:    src[7],
		Sky:   src[8],
		Torch: src[9],
		Tile:  binary.LittleEndian.Uint16(src[10:]),
		Color: binary.LittleEndian.Uint32(src[12:]),
	}
}
