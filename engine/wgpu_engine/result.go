package wgpu_engine

import (
	"fmt"

	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"

	"honnef.co/go/placement"
)

// Result references the output of one placement: a GPU buffer partitioned
// into per-class ranges of candidate capacity, plus per-class element
// counts. Accessors resolve lazily; the first one blocks until the GPU work
// has completed. Release frees the backing storage.
type Result struct {
	eng            *Engine
	buffers        placement.ResultBuffers
	numClasses     int
	candidateCount uint32

	counts   []uint32
	elements []placement.Element
	resolved bool
	err      error
}

// elementSize is the byte size of one output element.
const elementSize = 16

// resolve reads back the per-class counts and the output buffer. Errors
// stick: a failed readback poisons every subsequent accessor.
func (res *Result) resolve() error {
	if res.resolved {
		return res.err
	}
	res.resolved = true
	if res.numClasses == 0 || res.candidateCount == 0 {
		return nil
	}
	countData, err := res.eng.readDownload(res.buffers.Counts)
	if err != nil {
		res.err = err
		return err
	}
	res.counts = make([]uint32, res.numClasses)
	copy(res.counts, safeish.SliceCast[[]uint32](countData))

	elemData, err := res.eng.readDownload(res.buffers.Output)
	if err != nil {
		res.err = err
		return err
	}
	res.elements = safeish.SliceCast[[]placement.Element](elemData)
	return nil
}

// NumClasses returns the number of classes of the layer the placement was
// computed for.
func (res *Result) NumClasses() int {
	return res.numClasses
}

// ClassElementCount returns the number of elements placed for class i.
func (res *Result) ClassElementCount(i int) (int, error) {
	if err := res.resolve(); err != nil {
		return 0, err
	}
	if res.counts == nil {
		return 0, nil
	}
	return int(res.counts[i]), nil
}

// ElementArrayLength returns the total number of placed elements across all
// classes.
func (res *Result) ElementArrayLength() (int, error) {
	if err := res.resolve(); err != nil {
		return 0, err
	}
	var total int
	for _, c := range res.counts {
		total += int(c)
	}
	return total, nil
}

func (res *Result) classRange(i int) []placement.Element {
	base := uint32(i) * res.candidateCount
	return res.elements[base : base+res.counts[i]]
}

// CopyAllToHost returns all placed elements, ordered by class: class 0
// first, then class 1, and so on.
func (res *Result) CopyAllToHost() ([]placement.Element, error) {
	if err := res.resolve(); err != nil {
		return nil, err
	}
	var total int
	for _, c := range res.counts {
		total += int(c)
	}
	out := make([]placement.Element, 0, total)
	for i := range res.counts {
		out = append(out, res.classRange(i)...)
	}
	return out, nil
}

// CopyClassToHost returns the elements placed for class i.
func (res *Result) CopyClassToHost(i int) ([]placement.Element, error) {
	if err := res.resolve(); err != nil {
		return nil, err
	}
	if res.counts == nil {
		return nil, nil
	}
	out := make([]placement.Element, res.counts[i])
	copy(out, res.classRange(i))
	return out, nil
}

// CopyAllTo copies all placed elements into dst on the device, packed in
// class order. dst must be large enough to hold ElementArrayLength elements
// and usable as a copy destination. Device copies require a GPU engine.
func (res *Result) CopyAllTo(queue *wgpu.Queue, dst *wgpu.Buffer) error {
	if err := res.resolve(); err != nil {
		return err
	}
	if res.eng.useCPU {
		return fmt.Errorf("placement: device copies are not available on the CPU engine")
	}
	src, ok := res.eng.bindMap.getGPUBuf(res.buffers.Output.ID)
	if !ok {
		return fmt.Errorf("placement: result buffer was already released")
	}
	encoder := res.eng.dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "result copy"})
	defer encoder.Release()
	var dstOff uint64
	for i, count := range res.counts {
		srcOff := uint64(i) * uint64(res.candidateCount) * elementSize
		size := uint64(count) * elementSize
		if size == 0 {
			continue
		}
		encoder.CopyBufferToBuffer(src, srcOff, dst, dstOff, size)
		dstOff += size
	}
	cmd := encoder.Finish(nil)
	defer cmd.Release()
	queue.Submit(cmd)
	return nil
}

// CopyClassTo copies the elements placed for class i into dst on the
// device. Device copies require a GPU engine.
func (res *Result) CopyClassTo(queue *wgpu.Queue, i int, dst *wgpu.Buffer) error {
	if err := res.resolve(); err != nil {
		return err
	}
	if res.eng.useCPU {
		return fmt.Errorf("placement: device copies are not available on the CPU engine")
	}
	src, ok := res.eng.bindMap.getGPUBuf(res.buffers.Output.ID)
	if !ok {
		return fmt.Errorf("placement: result buffer was already released")
	}
	size := uint64(res.counts[i]) * elementSize
	if size == 0 {
		return nil
	}
	encoder := res.eng.dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "result copy"})
	defer encoder.Release()
	encoder.CopyBufferToBuffer(src, uint64(i)*uint64(res.candidateCount)*elementSize, dst, 0, size)
	cmd := encoder.Finish(nil)
	defer cmd.Release()
	queue.Submit(cmd)
	return nil
}

// Release frees the result's backing storage. The Result must not be used
// afterwards; host copies already returned remain valid.
func (res *Result) Release() {
	if res.eng == nil {
		return
	}
	res.eng.freeResultBuffers(res.buffers.Output, res.buffers.Counts)
	res.eng = nil
	res.elements = nil
}
