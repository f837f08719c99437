package placement

import "sync/atomic"

var resourceID atomic.Uint64

func nextResourceID() ResourceID {
	return ResourceID(resourceID.Add(1))
}

// ResourceID identifies a buffer or image for the lifetime of a process.
type ResourceID uint64

// Recording is a typed stream of GPU commands. The placement planner appends
// uploads and dispatches to it; an engine plays it back against a device or
// against CPU reference kernels. Commands execute in order, which is what
// stands in for explicit memory barriers between pipeline stages.
type Recording struct {
	Commands []Command
}

func (rec *Recording) push(cmd Command) {
	rec.Commands = append(rec.Commands, cmd)
}

// Upload creates a storage buffer holding data.
func (rec *Recording) Upload(name string, data []byte) BufferProxy {
	buf := NewBufferProxy(uint64(len(data)), name)
	rec.push(Upload{buf, data})
	return buf
}

// UploadUniform creates a uniform buffer holding data.
func (rec *Recording) UploadUniform(name string, data []byte) BufferProxy {
	buf := NewBufferProxy(uint64(len(data)), name)
	rec.push(UploadUniform{buf, data})
	return buf
}

// UploadImage creates a texture holding RGBA8 data.
func (rec *Recording) UploadImage(width, height uint32, data []byte) ImageProxy {
	img := NewImageProxy(width, height)
	rec.push(UploadImage{img, data})
	return img
}

// Dispatch enqueues a compute dispatch of wgCount workgroups with the given
// resources bound in binding order.
func (rec *Recording) Dispatch(shader ShaderID, wgCount [3]uint32, resources []ResourceProxy) {
	rec.push(Dispatch{shader, wgCount, resources})
}

// Download requests that buf be copied into host-readable memory when the
// recording runs. The engine retains the copy until the buffer is freed.
func (rec *Recording) Download(buf BufferProxy) {
	rec.push(Download{buf})
}

// ClearAll zeroes buf.
func (rec *Recording) ClearAll(buf BufferProxy) {
	rec.push(Clear{buf})
}

func (rec *Recording) FreeBuffer(buf BufferProxy) {
	rec.push(FreeBuffer{buf})
}

func (rec *Recording) FreeImage(img ImageProxy) {
	rec.push(FreeImage{img})
}

func NewBufferProxy(size uint64, name string) BufferProxy {
	return BufferProxy{Size: size, ID: nextResourceID(), Name: name}
}

func NewImageProxy(width, height uint32) ImageProxy {
	return ImageProxy{Width: width, Height: height, ID: nextResourceID()}
}

// ResourceProxy is either a BufferProxy or an ImageProxy.
type ResourceProxy interface {
	isResourceProxy()
}

type BufferProxy struct {
	Size uint64
	ID   ResourceID
	Name string
}

func (BufferProxy) isResourceProxy() {}

// ImageProxy references an RGBA8 texture.
type ImageProxy struct {
	Width  uint32
	Height uint32
	ID     ResourceID
}

func (ImageProxy) isResourceProxy() {}

// ShaderID indexes a compiled kernel within an engine.
type ShaderID int

// FullKernels holds the shader IDs of the four placement kernels as
// registered with an engine.
type FullKernels struct {
	Generation ShaderID
	Evaluation ShaderID
	Indexation ShaderID
	Copy       ShaderID
}

type Command interface {
	isCommand()
}

func (Upload) isCommand()        {}
func (UploadUniform) isCommand() {}
func (UploadImage) isCommand()   {}
func (Dispatch) isCommand()      {}
func (Download) isCommand()      {}
func (Clear) isCommand()         {}
func (FreeBuffer) isCommand()    {}
func (FreeImage) isCommand()     {}

type Upload struct {
	Buffer BufferProxy
	Data   []byte
}

type UploadUniform struct {
	Buffer BufferProxy
	Data   []byte
}

type UploadImage struct {
	Image ImageProxy
	Data  []byte
}

type Dispatch struct {
	Shader         ShaderID
	WorkgroupCount [3]uint32
	Bindings       []ResourceProxy
}

type Download struct {
	Buffer BufferProxy
}

type Clear struct {
	Buffer BufferProxy
}

type FreeBuffer struct {
	Buffer BufferProxy
}

type FreeImage struct {
	Image ImageProxy
}

// BindType describes how a kernel accesses one of its bindings.
type BindType int

const (
	BindTypeBuffer BindType = iota + 1
	BindTypeBufReadOnly
	BindTypeUniform
	BindTypeImageRead
)
