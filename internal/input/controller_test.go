package input

import "testing"

func TestNewControllerHasDefaultState(t *testing.T) {
	c := New()
	if c.buttons != 0 || c.shiftRegister != 0 || c.strobe {
		t.Fatalf("expected zeroed controller, got %+v", c)
	}
}

func TestSetButtonUpdatesState(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	if !c.IsPressed(ButtonA) {
		t.Error("ButtonA should be pressed")
	}
	c.SetButton(ButtonA, false)
	if c.IsPressed(ButtonA) {
		t.Error("ButtonA should be released")
	}
}

func TestSetButtonsCombinesState(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, false, true, false, false, false, false})

	if !c.IsPressed(ButtonA) || !c.IsPressed(ButtonStart) {
		t.Error("expected A and Start pressed")
	}
	if c.IsPressed(ButtonB) {
		t.Error("B should not be pressed")
	}
}

func TestShiftRegisterReadsButtonsLSBFirst(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, true, false, false, false, false, false})

	c.Write(1) // strobe high
	c.Write(0) // falling edge: latch

	var got [8]uint8
	for i := range got {
		got[i] = c.Read()
	}

	want := [8]uint8{1, 0, 1, 0, 0, 0, 0, 0}
	if got != want {
		t.Errorf("shift sequence = %v, want %v", got, want)
	}

	if got9 := c.Read(); got9 != 0 {
		t.Errorf("9th read = %d, want 0", got9)
	}
}

func TestStrobeHighAlwaysReturnsLiveAButton(t *testing.T) {
	c := New()
	c.Write(1) // strobe high

	c.SetButton(ButtonA, true)
	if got := c.Read(); got != 1 {
		t.Errorf("Read() while strobed with A held = %d, want 1", got)
	}
	c.SetButton(ButtonA, false)
	if got := c.Read(); got != 0 {
		t.Errorf("Read() while strobed with A released = %d, want 0", got)
	}
}

func TestLatchOnlyOccursOnFallingEdge(t *testing.T) {
	c := New()
	c.SetButton(ButtonB, true)
	c.Write(1) // strobe high: no latch yet, shift register untouched by this write

	c.SetButton(ButtonB, false)
	c.SetButton(ButtonA, true) // change state while still strobed

	c.Write(0) // falling edge: latches the CURRENT state (A held, B released)

	if got := c.Read(); got != 1 {
		t.Errorf("first bit after falling-edge latch = %d, want 1 (A)", got)
	}
}

func TestController2Read4017ForcesBit6(t *testing.T) {
	is := NewInputState()
	is.Write(0x4016, 1)
	is.Write(0x4016, 0)

	got := is.Read(0x4017)
	if got&0x40 == 0 {
		t.Errorf("$4017 read = 0x%02X, expected bit 6 set", got)
	}
}

func TestBothControllersShareStrobeLine(t *testing.T) {
	is := NewInputState()
	is.Controller1.SetButton(ButtonA, true)
	is.Controller2.SetButton(ButtonA, true)

	is.Write(0x4016, 1)
	is.Write(0x4016, 0)

	if got := is.Read(0x4016); got != 1 {
		t.Errorf("controller1 first bit = %d, want 1", got)
	}
	if got := is.Read(0x4017) & 1; got != 1 {
		t.Errorf("controller2 first bit = %d, want 1", got)
	}
}
