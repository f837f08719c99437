package placement

import (
	"errors"
	"image"

	"golang.org/x/image/draw"

	"honnef.co/go/placement/pmath"
)

// Texture is an RGBA8 image in host memory. The placement kernels only read
// the red channel: heightmaps encode height in it, density maps encode
// probability weight. Decoding image files is the caller's business;
// NewTextureFromImage converts anything that decoded into an image.Image.
type Texture struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// NewTextureFromImage converts img into an RGBA8 texture.
func NewTextureFromImage(img image.Image) Texture {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return Texture{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: rgba.Pix,
	}
}

// NewUniformTexture returns a 1x1 texture whose red channel holds value.
func NewUniformTexture(value uint8) Texture {
	return Texture{Width: 1, Height: 1, Pixels: []byte{value, value, value, 0xff}}
}

func (t *Texture) validate() error {
	if t.Width == 0 || t.Height == 0 {
		return errors.New("texture has zero extent")
	}
	if uint32(len(t.Pixels)) != t.Width*t.Height*4 {
		return errors.New("pixel data does not match RGBA8 extent")
	}
	return nil
}

func (t *Texture) red(x, y int32) float32 {
	return float32(t.Pixels[(uint32(y)*t.Width+uint32(x))*4]) / 255.0
}

// SampleRed samples the red channel at (u, v) with bilinear filtering and
// clamped coordinates. The arithmetic mirrors the sample_red function in the
// WGSL kernels so that the CPU reference shaders reproduce GPU results.
func (t *Texture) SampleRed(u, v float32) float32 {
	w := float32(t.Width)
	h := float32(t.Height)
	px := pmath.Clamp01(u)*w - 0.5
	py := pmath.Clamp01(v)*h - 0.5
	p0x := pmath.Floor32(px)
	p0y := pmath.Floor32(py)
	fx := px - p0x
	fy := py - p0y
	i0x := clampTexel(int32(p0x), int32(t.Width)-1)
	i0y := clampTexel(int32(p0y), int32(t.Height)-1)
	i1x := clampTexel(int32(p0x)+1, int32(t.Width)-1)
	i1y := clampTexel(int32(p0y)+1, int32(t.Height)-1)
	top := pmath.Mix(t.red(i0x, i0y), t.red(i1x, i0y), fx)
	bot := pmath.Mix(t.red(i0x, i1y), t.red(i1x, i1y), fx)
	return pmath.Mix(top, bot, fy)
}

func clampTexel(x, maxTexel int32) int32 {
	return min(max(x, 0), maxTexel)
}
