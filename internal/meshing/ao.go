package meshing

import (
	"seamcraft/internal/profiling"
	"seamcraft/internal/registry"
)

// corner offsets in (u, v) and the direction towards the quad interior.
var corners = [4]struct{ cu, cv, iu, iv int }{
	{0, 0, 1, 1},
	{1, 0, -1, 1},
	{1, 1, -1, -1},
	{0, 1, 1, -1},
}

// AmbientOcclusion turns the quads of pc into vertices, shading each corner
// by the opaque cells around it in the layer in front of the face.
func AmbientOcclusion(pc *Precomp, reg *registry.Registry) {
	defer profiling.Track("meshing.AmbientOcclusion")()
	for i := range pc.Mesh {
		for c := range pc.Mesh[i].Vertices {
			pc.Mesh[i].Vertices[c] = pc.Mesh[i].Vertices[c][:0]
		}
	}
	for _, q := range pc.quads {
		a, sign := faceAxis(q.face)
		u, v := (a+1)%3, (a+2)%3
		front := q.plane
		if sign < 0 {
			front--
		}
		opaque := func(cu, cv int) int {
			var pos [3]int
			pos[a], pos[u], pos[v] = front, cu, cv
			if reg.IsOpaque(pc.at(pos[0], pos[1], pos[2]).ID) {
				return 1
			}
			return 0
		}

		def := reg.Get(q.id)
		shader, tile := registry.ShaderStandard, uint16(0)
		if def != nil {
			shader, tile = def.Shader, def.Tile
		}

		var quadVerts [4]Vertex
		for k, c := range corners {
			cu, cv := q.u0+c.cu*q.du, q.v0+c.cv*q.dv
			inU, outU := cu, cu-1
			if c.iu < 0 {
				inU, outU = cu-1, cu
			}
			inV, outV := cv, cv-1
			if c.iv < 0 {
				inV, outV = cv-1, cv
			}
			s1, s2, corner := opaque(outU, inV), opaque(inU, outV), opaque(outU, outV)
			ao := 3 - (s1 + s2 + corner)
			if s1 == 1 && s2 == 1 {
				ao = 0
			}

			var pos [3]int
			pos[a], pos[u], pos[v] = q.plane, cu, cv
			quadVerts[k] = Vertex{
				X: int16(pos[0]), Y: int16(pos[1]), Z: int16(pos[2]),
				Face:  uint8(q.face),
				AO:    uint8(ao),
				Sky:   q.sky,
				Torch: q.torch,
				Tile:  tile,
				Color: q.color,
			}
		}
		if sign < 0 {
			quadVerts[1], quadVerts[3] = quadVerts[3], quadVerts[1]
		}
		pm := &pc.Mesh[q.part]
		pm.Vertices[shader] = append(pm.Vertices[shader], quadVerts[:]...)
	}
	pc.quads = pc.quads[:0]
}

// Compile runs both passes.
func Compile(pc *Precomp, reg *registry.Registry) {
	Precompile(pc, reg)
	AmbientOcclusion(pc, reg)
}

// VertexCount totals the vertices of every part and class.
func (pc *Precomp) VertexCount() int {
	n := 0
	for i := range pc.Mesh {
		for c := range pc.Mesh[i].Vertices {
			n += len(pc.Mesh[i].Vertices[c])
		}
	}
	return n
}
