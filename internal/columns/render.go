package columns

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"seamcraft/internal/registry"
)

// Handle names a GPU buffer owned by a Renderer.
type Handle uint32

// Counts and Offsets are per shader class, in vertices.
type (
	Counts  [registry.NumShaderClasses]int
	Offsets [registry.NumShaderClasses]int
)

// Renderer owns column buffers. Upload replaces the whole content of h.
type Renderer interface {
	Create() (Handle, error)
	Upload(h Handle, data []byte, counts Counts, offsets Offsets) error
	Destroy(h Handle)
}

// Frustum decides whether a column's bounding cylinder may be visible.
// wx, wz is the column centre, wy its bottom, all in world blocks.
type Frustum interface {
	TestColumn(wx, wz, wy, height, radius float32) bool
}

// AcceptAll is a Frustum that sees everything.
type AcceptAll struct{}

func (AcceptAll) TestColumn(wx, wz, wy, height, radius float32) bool { return true }

// Culling margin in blocks.
var frustumMargin float32 = 1.0

type plane struct{ a, b, c, d float32 }

// PlaneFrustum tests columns against the six planes of a projection*view
// matrix.
type PlaneFrustum struct {
	planes [6]plane
}

func NewPlaneFrustum(clip mgl32.Mat4) *PlaneFrustum {
	return &PlaneFrustum{planes: extractFrustumPlanes(clip)}
}

// Update re-extracts the planes.
func (f *PlaneFrustum) Update(clip mgl32.Mat4) { f.planes = extractFrustumPlanes(clip) }

// extractFrustumPlanes returns left, right, bottom, top, near, far.
func extractFrustumPlanes(clip mgl32.Mat4) [6]plane {
	// mgl32 is column-major.
	row := func(r int) [4]float32 {
		return [4]float32{clip[r], clip[4+r], clip[8+r], clip[12+r]}
	}
	m0, m1, m2, m3 := row(0), row(1), row(2), row(3)
	combine := func(a [4]float32, s float32) plane {
		return normalizePlane(plane{m3[0] + s*a[0], m3[1] + s*a[1], m3[2] + s*a[2], m3[3] + s*a[3]})
	}
	return [6]plane{
		combine(m0, 1), combine(m0, -1),
		combine(m1, 1), combine(m1, -1),
		combine(m2, 1), combine(m2, -1),
	}
}

func normalizePlane(p plane) plane {
	l := float32(math.Sqrt(float64(p.a*p.a + p.b*p.b + p.c*p.c)))
	if l == 0 {
		return p
	}
	return plane{p.a / l, p.b / l, p.c / l, p.d / l}
}

// TestColumn checks the column's bounding box, inflated by the margin.
func (f *PlaneFrustum) TestColumn(wx, wz, wy, height, radius float32) bool {
	r := radius + frustumMargin
	minx, miny, minz := wx-r, wy-frustumMargin, wz-r
	maxx, maxy, maxz := wx+r, wy+height+frustumMargin, wz+r
	for _, p := range f.planes {
		// Positive vertex for this normal.
		px, py, pz := maxx, maxy, maxz
		if p.a < 0 {
			px = minx
		}
		if p.b < 0 {
			py = miny
		}
		if p.c < 0 {
			pz = minz
		}
		if p.a*px+p.b*py+p.c*pz+p.d < 0 {
			return false
		}
	}
	return true
}

// MemoryRenderer keeps uploads in memory. It backs headless runs and tests.
type MemoryRenderer struct {
	mu      sync.Mutex
	next    Handle
	buffers map[Handle]*MemoryBuffer
	uploads int
}

type MemoryBuffer struct {
	Data    []byte
	Counts  Counts
	Offsets Offsets
}

func NewMemoryRenderer() *MemoryRenderer {
	return &MemoryRenderer{buffers: make(map[Handle]*MemoryBuffer)}
}

func (r *MemoryRenderer) Create() (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.buffers[r.next] = &MemoryBuffer{}
	return r.next, nil
}

func (r *MemoryRenderer) Upload(h Handle, data []byte, counts Counts, offsets Offsets) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[h]
	if !ok {
		return fmt.Errorf("upload to unknown buffer %d", h)
	}
	buf.Data = append(buf.Data[:0], data...)
	buf.Counts, buf.Offsets = counts, offsets
	r.uploads++
	return nil
}

func (r *MemoryRenderer) Destroy(h Handle) {
	r.mu.Lock()
	delete(r.buffers, h)
	r.mu.Unlock()
}

// Buffer returns the last upload to h, or nil.
func (r *MemoryRenderer) Buffer(h Handle) *MemoryBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffers[h]
}

func (r *MemoryRenderer) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

func (r *MemoryRenderer) Uploads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uploads
}
