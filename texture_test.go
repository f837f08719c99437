package placement

import (
	"image"
	"image/color"
	"testing"
)

func TestTextureSampleUniform(t *testing.T) {
	tex := NewUniformTexture(255)
	for _, uv := range [][2]float32{{0, 0}, {0.5, 0.5}, {1, 1}, {-2, 0.3}, {0.3, 7}} {
		if got := tex.SampleRed(uv[0], uv[1]); got != 1 {
			t.Errorf("SampleRed(%g, %g) = %g, want 1", uv[0], uv[1], got)
		}
	}
}

func TestTextureSampleBilinear(t *testing.T) {
	// Two texels, red 0 and 255: the midpoint of the texture interpolates
	// halfway between them.
	tex := Texture{
		Width:  2,
		Height: 1,
		Pixels: []byte{0, 0, 0, 255, 255, 0, 0, 255},
	}
	if got := tex.SampleRed(0.5, 0.5); got != 0.5 {
		t.Errorf("midpoint = %g, want 0.5", got)
	}
	// Coordinates past the edges clamp to the border texels.
	if got := tex.SampleRed(-1, 0); got != 0 {
		t.Errorf("left clamp = %g, want 0", got)
	}
	if got := tex.SampleRed(2, 0); got != 1 {
		t.Errorf("right clamp = %g, want 1", got)
	}
}

func TestNewTextureFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := range 2 {
		for x := range 4 {
			img.Set(x, y, color.NRGBA{R: uint8(x * 60), A: 255})
		}
	}
	tex := NewTextureFromImage(img)
	if tex.Width != 4 || tex.Height != 2 {
		t.Fatalf("texture is %dx%d, want 4x2", tex.Width, tex.Height)
	}
	if err := tex.validate(); err != nil {
		t.Fatalf("converted texture invalid: %v", err)
	}
	if tex.Pixels[4] != 60 {
		t.Errorf("texel (1, 0) red = %d, want 60", tex.Pixels[4])
	}
}
