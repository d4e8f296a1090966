package native

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/termgrid"
)

// TestNewWithHALValidation verifies the HAL handles are required.
func TestNewWithHALValidation(t *testing.T) {
	if _, err := NewWithHAL(nil, nil); err == nil {
		t.Error("NewWithHAL(nil, nil) succeeded")
	}
}

// TestHalTextureUsage verifies the usage flag translation.
func TestHalTextureUsage(t *testing.T) {
	tests := []struct {
		in   termgrid.TextureUsage
		want gputypes.TextureUsage
	}{
		{termgrid.TextureUsageCopySrc, gputypes.TextureUsageCopySrc},
		{termgrid.TextureUsageCopyDst, gputypes.TextureUsageCopyDst},
		{termgrid.TextureUsageBinding, gputypes.TextureUsageTextureBinding},
		{
			termgrid.TextureUsageCopySrc | termgrid.TextureUsageCopyDst | termgrid.TextureUsageBinding,
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
		},
		{0, 0},
	}
	for _, tt := range tests {
		if got := halTextureUsage(tt.in); got != tt.want {
			t.Errorf("halTextureUsage(%#x) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
