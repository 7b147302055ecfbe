package graphics

import "testing"

func TestProcessFrameIsIdentityAtDefaultLevels(t *testing.T) {
	vp := NewVideoProcessor(1.0, 1.0, 1.0)
	input := []uint32{0x112233, 0xAABBCC}

	got := vp.ProcessFrame(input)
	if len(got) != len(input) || got[0] != input[0] || got[1] != input[1] {
		t.Errorf("ProcessFrame at identity levels = %v, want %v unchanged", got, input)
	}
}

func TestProcessFrameBrightnessScalesChannels(t *testing.T) {
	vp := NewVideoProcessor(0.5, 1.0, 1.0)
	got := vp.ProcessFrame([]uint32{0x808080})

	r := (got[0] >> 16) & 0xFF
	if r >= 0x80 {
		t.Errorf("red channel = 0x%02X, expected darkened below 0x80", r)
	}
}

func TestProcessFrameClampsOverflow(t *testing.T) {
	vp := NewVideoProcessor(3.0, 1.0, 1.0)
	got := vp.ProcessFrame([]uint32{0xFFFFFF})

	if got[0] != 0xFFFFFF {
		t.Errorf("ProcessFrame with brightness=3.0 on white = 0x%06X, want clamped to 0xFFFFFF", got[0])
	}
}

func TestSetBrightnessContrastSaturationUpdateState(t *testing.T) {
	vp := NewVideoProcessor(1.0, 1.0, 1.0)
	vp.SetBrightness(0.8)
	vp.SetContrast(1.2)
	vp.SetSaturation(0.5)

	if vp.brightness != 0.8 || vp.contrast != 1.2 || vp.saturation != 0.5 {
		t.Errorf("setters did not update state: %+v", vp)
	}
}
