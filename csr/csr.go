// Package csr provides the register-mapped control/status surface of the
// RANSAC core: run parameters are staged through 32-bit registers, runs
// are started and aborted through control strobes, and results are read
// back from read-only fields.
package csr

import (
	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/timing/ransac"
)

// Register addresses, word-aligned.
const (
	// RegCtrl accepts the start and abort strobes. It reads as zero.
	RegCtrl uint32 = 0x00
	// RegStatus is read-only: bit 0 is set while a run is active.
	RegStatus uint32 = 0x04
	// RegCloudBaseLo and RegCloudBaseHi stage the cloud base address.
	RegCloudBaseLo uint32 = 0x08
	RegCloudBaseHi uint32 = 0x0C
	// RegNumPoints stages the number of cloud records.
	RegNumPoints uint32 = 0x10
	// RegIterations stages the requested iteration count.
	RegIterations uint32 = 0x14
	// RegThreshold stages the inlier tolerance, Q16.16.
	RegThreshold uint32 = 0x18
	// RegProcessed is read-only: completed iterations so far.
	RegProcessed uint32 = 0x1C
	// RegBestInliers is read-only: the best record's inlier count.
	RegBestInliers uint32 = 0x20
	// RegBestNX, RegBestNY, RegBestNZ, and RegBestOffset are read-only:
	// the best plane, Q16.16, saturated to 32 bits.
	RegBestNX     uint32 = 0x24
	RegBestNY     uint32 = 0x28
	RegBestNZ     uint32 = 0x2C
	RegBestOffset uint32 = 0x30
)

// Control strobe bits.
const (
	CtrlStart uint32 = 1 << 0
	CtrlAbort uint32 = 1 << 1
)

// Core is the register file's view of the controller.
type Core interface {
	Done() bool
	Start(cfg ransac.RunConfig) error
	Abort()
	Processed() uint64
	Best() ransac.Best
}

// File is the register file. Writes to anything but RegCtrl are ignored
// while a run is active, so parameters cannot change under a running
// core. A start strobe while active is also ignored.
type File struct {
	core Core

	baseLo     uint32
	baseHi     uint32
	numPoints  uint32
	iterations uint32
	threshold  uint32
}

// NewFile creates a register file over the given core.
func NewFile(core Core) *File {
	return &File{core: core}
}

// active reports whether a run is in progress.
func (f *File) active() bool {
	return !f.core.Done()
}

// Write stores a value into the register at addr. Unknown addresses and
// read-only registers ignore the write.
func (f *File) Write(addr, value uint32) {
	if addr == RegCtrl {
		f.writeCtrl(value)
		return
	}
	if f.active() {
		return
	}
	switch addr {
	case RegCloudBaseLo:
		f.baseLo = value
	case RegCloudBaseHi:
		f.baseHi = value
	case RegNumPoints:
		f.numPoints = value
	case RegIterations:
		f.iterations = value
	case RegThreshold:
		f.threshold = value
	}
}

func (f *File) writeCtrl(value uint32) {
	if value&CtrlAbort != 0 {
		f.core.Abort()
		return
	}
	if value&CtrlStart != 0 && !f.active() {
		// A rejected start leaves the core idle; the host observes the
		// status register staying clear.
		_ = f.core.Start(ransac.RunConfig{
			Base:       uint64(f.baseHi)<<32 | uint64(f.baseLo),
			NumPoints:  int(f.numPoints),
			Threshold:  fixed.FromBits32(int32(f.threshold)),
			Iterations: int(f.iterations),
		})
	}
}

// Read returns the value of the register at addr. Unknown addresses read
// as zero.
func (f *File) Read(addr uint32) uint32 {
	switch addr {
	case RegStatus:
		if f.active() {
			return 1
		}
		return 0
	case RegCloudBaseLo:
		return f.baseLo
	case RegCloudBaseHi:
		return f.baseHi
	case RegNumPoints:
		return f.numPoints
	case RegIterations:
		return f.iterations
	case RegThreshold:
		return f.threshold
	case RegProcessed:
		return uint32(f.core.Processed())
	case RegBestInliers:
		return uint32(f.core.Best().Inliers)
	case RegBestNX:
		return uint32(f.core.Best().Plane.Normal.X.Bits32())
	case RegBestNY:
		return uint32(f.core.Best().Plane.Normal.Y.Bits32())
	case RegBestNZ:
		return uint32(f.core.Best().Plane.Normal.Z.Bits32())
	case RegBestOffset:
		return uint32(f.core.Best().Plane.Offset.Bits32())
	}
	return 0
}
