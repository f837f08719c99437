package pmath

import "testing"

func TestAlignUp(t *testing.T) {
	tests := []struct {
		x, align, want uint32
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{63, 64, 64},
		{65, 64, 128},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.x, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.x, tt.align, got, tt.want)
		}
	}
}

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		x, y, want uint32
	}{
		{0, 64, 0},
		{1, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{15000, 64, 235},
	}
	for _, tt := range tests {
		if got := CeilDiv(tt.x, tt.y); got != tt.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestVec2Distance(t *testing.T) {
	if d := V2(0, 0).Distance(V2(3, 4)); d != 5 {
		t.Errorf("distance = %g, want 5", d)
	}
}

func TestMix(t *testing.T) {
	if got := Mix(2, 4, 0.5); got != 3 {
		t.Errorf("Mix(2, 4, 0.5) = %g, want 3", got)
	}
	if got := Mix(1, 1, 0.3); got != 1 {
		t.Errorf("Mix(1, 1, 0.3) = %g, want 1", got)
	}
}
