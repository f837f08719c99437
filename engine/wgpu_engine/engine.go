// Package wgpu_engine executes placement recordings on a wgpu device, or on
// the CPU reference kernels, and exposes the user-facing placement pipeline.
package wgpu_engine

import (
	"fmt"
	"math"
	"math/bits"
	"reflect"

	"honnef.co/go/wgpu"

	"honnef.co/go/placement"
	"honnef.co/go/placement/engine/wgpu_engine/shaders"
	"honnef.co/go/placement/engine/wgpu_engine/shaders/cpu"
)

// Engine owns the compiled kernels and the GPU resources backing recording
// playback. It is not safe for concurrent use; callers serialize
// invocations.
type Engine struct {
	dev    *wgpu.Device
	useCPU bool

	shaders   []shader
	pool      resourcePool
	bindMap   bindMap
	downloads map[placement.ResourceID]download
}

type wgpuShader struct {
	label           string
	pipeline        *wgpu.ComputePipeline
	bindGroupLayout *wgpu.BindGroupLayout
}

type shader struct {
	label string
	wgpu  *wgpuShader
	cpu   cpu.Kernel
}

// download is a host-readable copy of a downloaded buffer: a mappable
// staging buffer on GPU, the buffer's backing slice on CPU.
type download struct {
	gpu *wgpu.Buffer
	cpu []byte
}

type bindMapBuffer struct {
	gpu   *wgpu.Buffer
	cpu   []byte
	label string
}

type bindMapImage struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	cpu     cpu.Image
}

type bindMap struct {
	bufMap        map[placement.ResourceID]*bindMapBuffer
	imageMap      map[placement.ResourceID]*bindMapImage
	pendingClears map[placement.ResourceID]struct{}
}

type bufferProperties struct {
	size   uint64
	usages wgpu.BufferUsage
}

type resourcePool struct {
	bufs map[bufferProperties][]*wgpu.Buffer
}

var cpuKernels = map[string]cpu.Kernel{
	"Generation": cpu.Generation,
	"Evaluation": cpu.Evaluation,
	"Indexation": cpu.Indexation,
	"Copy":       cpu.Copy,
}

func newEngine(dev *wgpu.Device, useCPU bool) *Engine {
	return &Engine{
		dev:    dev,
		useCPU: useCPU,
		pool: resourcePool{
			bufs: make(map[bufferProperties][]*wgpu.Buffer),
		},
		bindMap: bindMap{
			bufMap:        make(map[placement.ResourceID]*bindMapBuffer),
			imageMap:      make(map[placement.ResourceID]*bindMapImage),
			pendingClears: make(map[placement.ResourceID]struct{}),
		},
		downloads: make(map[placement.ResourceID]download),
	}
}

// newFullKernels registers every kernel in shaders.Collection and returns
// their IDs, matched to placement.FullKernels fields by name.
func (eng *Engine) newFullKernels() placement.FullKernels {
	var out placement.FullKernels
	outV := reflect.ValueOf(&out).Elem()
	v := reflect.ValueOf(&shaders.Collection).Elem()
	for i := range v.NumField() {
		fieldName := v.Type().Field(i).Name
		outField := outV.FieldByName(fieldName)
		if !outField.IsValid() {
			continue
		}
		sh := v.Field(i).Addr().Interface().(*shaders.ComputeShader)
		if len(sh.WGSL) == 0 {
			panic(fmt.Sprintf("shader %q has no code", sh.Name))
		}
		id := eng.addShader(sh.Name, sh.WGSL, sh.Bindings, cpuKernels[fieldName])
		outField.Set(reflect.ValueOf(id))
	}
	return out
}

func (eng *Engine) addShader(
	label string,
	wgsl []byte,
	layout []placement.BindType,
	cpuKernel cpu.Kernel,
) placement.ShaderID {
	id := placement.ShaderID(len(eng.shaders))
	if eng.useCPU {
		if cpuKernel == nil {
			panic(fmt.Sprintf("no CPU kernel for %s", label))
		}
		eng.shaders = append(eng.shaders, shader{label: label, cpu: cpuKernel})
		return id
	}

	entries := make([]wgpu.BindGroupLayoutEntry, len(layout))
	for i, bindType := range layout {
		switch bindType {
		case placement.BindTypeBuffer, placement.BindTypeBufReadOnly:
			var typ wgpu.BufferBindingType
			if bindType == placement.BindTypeBuffer {
				typ = wgpu.BufferBindingTypeStorage
			} else {
				typ = wgpu.BufferBindingTypeReadOnlyStorage
			}
			entries[i] = wgpu.BindGroupLayoutEntry{
				Binding:    uint32(i),
				Visibility: wgpu.ShaderStageCompute,
				Buffer: &wgpu.BufferBindingLayout{
					Type: typ,
				},
			}
		case placement.BindTypeUniform:
			entries[i] = wgpu.BindGroupLayoutEntry{
				Binding:    uint32(i),
				Visibility: wgpu.ShaderStageCompute,
				Buffer: &wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeUniform,
				},
			}
		case placement.BindTypeImageRead:
			entries[i] = wgpu.BindGroupLayoutEntry{
				Binding:    uint32(i),
				Visibility: wgpu.ShaderStageCompute,
				Texture: &wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			}
		default:
			panic(fmt.Sprintf("invalid bind type %d", bindType))
		}
	}

	sh := eng.createComputePipeline(label, wgsl, entries)
	eng.shaders = append(eng.shaders, shader{label: label, wgpu: &sh})
	return id
}

func (eng *Engine) createComputePipeline(
	label string,
	wgsl []byte,
	entries []wgpu.BindGroupLayoutEntry,
) wgpuShader {
	shaderModule := eng.dev.MustCreateShaderModule(wgpu.ShaderModuleDescriptor{
		Label:  label,
		Source: wgpu.ShaderSourceWGSL(wgsl),
	})
	bindGroupLayout := eng.dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Entries: entries,
	})
	pipelineLayout := eng.dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindGroupLayout},
	})
	defer pipelineLayout.Release()
	pipeline := eng.dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shaderModule,
			EntryPoint: "main",
		},
	})
	return wgpuShader{
		label:           label,
		pipeline:        pipeline,
		bindGroupLayout: bindGroupLayout,
	}
}

// RunRecording plays back a recording. On GPU it encodes all commands into a
// single submission and returns without waiting for completion; on CPU it
// executes them synchronously.
func (eng *Engine) RunRecording(queue *wgpu.Queue, recording *placement.Recording, label string) {
	if eng.useCPU {
		eng.runRecordingCPU(recording)
		return
	}
	eng.runRecordingGPU(queue, recording, label)
}

func (eng *Engine) runRecordingCPU(recording *placement.Recording) {
	var freed []placement.ResourceID
	var freedImages []placement.ResourceID
	for _, cmd := range recording.Commands {
		switch cmd := cmd.(type) {
		case placement.Upload:
			eng.bindMap.uploadCPUBuf(cmd.Buffer, cmd.Data)

		case placement.UploadUniform:
			eng.bindMap.uploadCPUBuf(cmd.Buffer, cmd.Data)

		case placement.UploadImage:
			pixels := make([]byte, len(cmd.Data))
			copy(pixels, cmd.Data)
			eng.bindMap.imageMap[cmd.Image.ID] = &bindMapImage{
				cpu: cpu.Image{Width: cmd.Image.Width, Height: cmd.Image.Height, Pixels: pixels},
			}

		case placement.Dispatch:
			sh := eng.shaders[cmd.Shader]
			bindings := make([]cpu.Binding, len(cmd.Bindings))
			for i, proxy := range cmd.Bindings {
				switch proxy := proxy.(type) {
				case placement.BufferProxy:
					bindings[i] = cpu.Buffer(eng.bindMap.materializeCPUBuf(proxy))
				case placement.ImageProxy:
					img, ok := eng.bindMap.imageMap[proxy.ID]
					if !ok {
						panic("tried using unavailable image for dispatch")
					}
					bindings[i] = img.cpu
				default:
					panic(fmt.Sprintf("unhandled type %T", proxy))
				}
			}
			sh.cpu(cmd.WorkgroupCount, bindings)

		case placement.Download:
			buf, ok := eng.bindMap.bufMap[cmd.Buffer.ID]
			if !ok {
				panic("tried using unavailable buffer for download")
			}
			eng.downloads[cmd.Buffer.ID] = download{cpu: buf.cpu}

		case placement.Clear:
			clear(eng.bindMap.materializeCPUBuf(cmd.Buffer))

		case placement.FreeBuffer:
			freed = append(freed, cmd.Buffer.ID)

		case placement.FreeImage:
			freedImages = append(freedImages, cmd.Image.ID)

		default:
			panic(fmt.Sprintf("unhandled command %T", cmd))
		}
	}
	for _, id := range freed {
		delete(eng.bindMap.bufMap, id)
	}
	for _, id := range freedImages {
		delete(eng.bindMap.imageMap, id)
	}
}

func (eng *Engine) runRecordingGPU(queue *wgpu.Queue, recording *placement.Recording, label string) {
	freeBufs := map[placement.ResourceID]struct{}{}
	freeImages := map[placement.ResourceID]struct{}{}

	encoder := eng.dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	defer encoder.Release()

	for _, cmd := range recording.Commands {
		switch cmd := cmd.(type) {
		case placement.Upload:
			usage := wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst | wgpu.BufferUsageStorage
			buf := eng.pool.getBuf(cmd.Buffer.Size, cmd.Buffer.Name, usage, eng.dev)
			queue.WriteBuffer(buf, 0, cmd.Data)
			eng.bindMap.insertBuf(cmd.Buffer, buf)

		case placement.UploadUniform:
			usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
			buf := eng.pool.getBuf(cmd.Buffer.Size, cmd.Buffer.Name, usage, eng.dev)
			queue.WriteBuffer(buf, 0, cmd.Data)
			eng.bindMap.insertBuf(cmd.Buffer, buf)

		case placement.UploadImage:
			eng.uploadImage(queue, cmd.Image, cmd.Data)

		case placement.Dispatch:
			sh := eng.shaders[cmd.Shader].wgpu
			bindGroup := eng.createBindGroup(encoder, sh.bindGroupLayout, cmd.Bindings)
			cpass := encoder.BeginComputePass(nil)
			cpass.SetPipeline(sh.pipeline)
			cpass.SetBindGroup(0, bindGroup, nil)
			cpass.DispatchWorkgroups(cmd.WorkgroupCount[0], cmd.WorkgroupCount[1], cmd.WorkgroupCount[2])
			cpass.End()
			cpass.Release()

		case placement.Download:
			srcBuf, ok := eng.bindMap.getGPUBuf(cmd.Buffer.ID)
			if !ok {
				panic("tried using unavailable buffer for download")
			}
			usage := wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
			buf := eng.pool.getBuf(cmd.Buffer.Size, "download", usage, eng.dev)
			encoder.CopyBufferToBuffer(srcBuf, 0, buf, 0, cmd.Buffer.Size)
			eng.downloads[cmd.Buffer.ID] = download{gpu: buf}

		case placement.Clear:
			if buf, ok := eng.bindMap.getGPUBuf(cmd.Buffer.ID); ok {
				encoder.ClearBuffer(buf, 0, buf.Size())
			} else {
				eng.bindMap.pendingClears[cmd.Buffer.ID] = struct{}{}
			}

		case placement.FreeBuffer:
			freeBufs[cmd.Buffer.ID] = struct{}{}

		case placement.FreeImage:
			freeImages[cmd.Image.ID] = struct{}{}

		default:
			panic(fmt.Sprintf("unhandled command %T", cmd))
		}
	}
	cmd := encoder.Finish(nil)
	defer cmd.Release()
	queue.Submit(cmd)

	for id := range freeBufs {
		if buf, ok := eng.bindMap.bufMap[id]; ok {
			delete(eng.bindMap.bufMap, id)
			eng.pool.returnBuf(buf.gpu)
		}
	}
	for id := range freeImages {
		if img, ok := eng.bindMap.imageMap[id]; ok {
			delete(eng.bindMap.imageMap, id)
			img.view.Release()
			img.texture.Release()
		}
	}
}

func (eng *Engine) uploadImage(queue *wgpu.Queue, proxy placement.ImageProxy, data []byte) {
	format := wgpu.TextureFormatRGBA8Unorm
	texture := eng.dev.CreateTexture(&wgpu.TextureDescriptor{
		Size: wgpu.Extent3D{
			Width:              proxy.Width,
			Height:             proxy.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Format:        format,
	})
	view := texture.CreateView(&wgpu.TextureViewDescriptor{
		Dimension:     wgpu.TextureViewDimension2D,
		Aspect:        wgpu.TextureAspectAll,
		MipLevelCount: ^uint32(0),
		Format:        format,
	})
	queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:      0,
			BytesPerRow: proxy.Width * 4,
		},
		&wgpu.Extent3D{
			Width:              proxy.Width,
			Height:             proxy.Height,
			DepthOrArrayLayers: 1,
		},
	)
	eng.bindMap.imageMap[proxy.ID] = &bindMapImage{texture: texture, view: view}
}

func (eng *Engine) createBindGroup(
	encoder *wgpu.CommandEncoder,
	layout *wgpu.BindGroupLayout,
	bindings []placement.ResourceProxy,
) *wgpu.BindGroup {
	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, proxy := range bindings {
		switch proxy := proxy.(type) {
		case placement.BufferProxy:
			b, ok := eng.bindMap.bufMap[proxy.ID]
			if !ok {
				usage := wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst | wgpu.BufferUsageStorage
				buf := eng.pool.getBuf(proxy.Size, proxy.Name, usage, eng.dev)
				if _, ok := eng.bindMap.pendingClears[proxy.ID]; ok {
					delete(eng.bindMap.pendingClears, proxy.ID)
					encoder.ClearBuffer(buf, 0, buf.Size())
				}
				b = &bindMapBuffer{gpu: buf, label: proxy.Name}
				eng.bindMap.bufMap[proxy.ID] = b
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding: uint32(i),
				Buffer:  b.gpu,
				Size:    ^uint64(0),
			}
		case placement.ImageProxy:
			img, ok := eng.bindMap.imageMap[proxy.ID]
			if !ok {
				panic("tried binding unavailable image")
			}
			entries[i] = wgpu.BindGroupEntry{
				Binding:     uint32(i),
				TextureView: img.view,
				Size:        ^uint64(0),
			}
		default:
			panic(fmt.Sprintf("unhandled type %T", proxy))
		}
	}
	return eng.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: entries,
	})
}

// readDownload returns the host-visible contents of a previously downloaded
// buffer, blocking until the GPU work has completed.
func (eng *Engine) readDownload(proxy placement.BufferProxy) ([]byte, error) {
	dl, ok := eng.downloads[proxy.ID]
	if !ok {
		return nil, fmt.Errorf("placement: buffer %q was not downloaded", proxy.Name)
	}
	if eng.useCPU {
		return dl.cpu, nil
	}
	ch := dl.gpu.Map(eng.dev, wgpu.MapModeRead, 0, int(proxy.Size))
	if err := <-ch; err != nil {
		return nil, fmt.Errorf("placement: reading back %q: %w", proxy.Name, err)
	}
	data := make([]byte, proxy.Size)
	copy(data, dl.gpu.ReadOnlyMappedRange(0, int(proxy.Size)))
	dl.gpu.Unmap()
	return data, nil
}

// freeResultBuffers releases the buffers owned by a Result, returning GPU
// storage to the pool.
func (eng *Engine) freeResultBuffers(proxies ...placement.BufferProxy) {
	for _, proxy := range proxies {
		if dl, ok := eng.downloads[proxy.ID]; ok {
			delete(eng.downloads, proxy.ID)
			if dl.gpu != nil {
				dl.gpu.Release()
			}
		}
		if buf, ok := eng.bindMap.bufMap[proxy.ID]; ok {
			delete(eng.bindMap.bufMap, proxy.ID)
			eng.pool.returnBuf(buf.gpu)
		}
	}
}

func (m *bindMap) insertBuf(proxy placement.BufferProxy, buffer *wgpu.Buffer) {
	m.bufMap[proxy.ID] = &bindMapBuffer{gpu: buffer, label: proxy.Name}
}

func (m *bindMap) getGPUBuf(id placement.ResourceID) (*wgpu.Buffer, bool) {
	b, ok := m.bufMap[id]
	if !ok || b.gpu == nil {
		return nil, false
	}
	return b.gpu, true
}

func (m *bindMap) uploadCPUBuf(proxy placement.BufferProxy, data []byte) {
	buf := make([]byte, proxy.Size)
	copy(buf, data)
	m.bufMap[proxy.ID] = &bindMapBuffer{cpu: buf, label: proxy.Name}
}

// materializeCPUBuf returns the backing slice for proxy, allocating it on
// first use.
func (m *bindMap) materializeCPUBuf(proxy placement.BufferProxy) []byte {
	b, ok := m.bufMap[proxy.ID]
	if !ok {
		b = &bindMapBuffer{cpu: make([]byte, proxy.Size), label: proxy.Name}
		m.bufMap[proxy.ID] = b
	}
	return b.cpu
}

func (pool *resourcePool) getBuf(
	size uint64,
	name string,
	usage wgpu.BufferUsage,
	dev *wgpu.Device,
) *wgpu.Buffer {
	const sizeClassBits = 1
	roundedSize := poolSizeClass(size, sizeClassBits)
	props := bufferProperties{size: roundedSize, usages: usage}
	if bufVec := pool.bufs[props]; len(bufVec) > 0 {
		buf := bufVec[len(bufVec)-1]
		pool.bufs[props] = bufVec[:len(bufVec)-1]
		return buf
	}
	return dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  roundedSize,
		Usage: usage,
	})
}

func (pool *resourcePool) returnBuf(buf *wgpu.Buffer) {
	if buf == nil {
		return
	}
	props := bufferProperties{size: buf.Size(), usages: buf.Usage()}
	pool.bufs[props] = append(pool.bufs[props], buf)
}

func poolSizeClass(x uint64, numBits uint32) uint64 {
	if x > 1<<numBits {
		a := bits.LeadingZeros64(x - 1)
		b := (x - 1) | (((math.MaxUint64 / 2) >> numBits) >> a)
		return b + 1
	}
	return 1 << numBits
}
