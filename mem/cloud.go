// Package mem models the external memory holding the point cloud: a
// backing store of point records, a flaky latency-bounded read channel
// with tagged responses, and an optional read cache.
package mem

import "github.com/sarchlab/ransim/fixed"

// PointStride is the size of one point record in bytes: three 32-bit
// scalars plus one pad word.
const PointStride = 16

// Cloud is the point-cloud backing store.
type Cloud struct {
	base   uint64
	points []fixed.Point
}

// NewCloud creates a cloud at the given base byte address.
func NewCloud(base uint64, points []fixed.Point) *Cloud {
	return &Cloud{base: base, points: points}
}

// Base returns the cloud's base byte address.
func (c *Cloud) Base() uint64 {
	return c.base
}

// NumPoints returns the number of point records.
func (c *Cloud) NumPoints() int {
	return len(c.points)
}

// OffsetOf returns the byte offset of record i.
func (c *Cloud) OffsetOf(i int) uint64 {
	return c.base + uint64(i)*PointStride
}

// At reads the record at the given byte offset. It reports false for an
// unaligned or out-of-range offset.
func (c *Cloud) At(offset uint64) (fixed.Point, bool) {
	if offset < c.base || (offset-c.base)%PointStride != 0 {
		return fixed.Point{}, false
	}
	i := int((offset - c.base) / PointStride)
	if i >= len(c.points) {
		return fixed.Point{}, false
	}
	return c.points[i], true
}
