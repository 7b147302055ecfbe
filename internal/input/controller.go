// Package input implements the NES's two shift-register controller ports.
package input

// Button is a bitmask over the eight standard NES controller buttons.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller models one NES gamepad's 8-bit parallel-in/serial-out shift
// register.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool

	bitPosition uint8
}

// New creates an idle controller with no buttons held.
func New() *Controller {
	return &Controller{}
}

// SetButton sets or clears a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons sets all eight button states at once, in A, B, Select,
// Start, Up, Down, Left, Right order.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = 0
	for i, pressed := range buttons {
		if pressed {
			c.buttons |= 1 << uint(i)
		}
	}
}

// IsPressed reports whether button is currently held.
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles a write to the controller's strobe line ($4016). The
// shift register is parallel-loaded with the live button state on the
// falling edge of strobe (1→0), matching real 4021 shift-register wiring;
// while strobe is held high, Read keeps returning the live A-button bit
// rather than advancing through the register.
func (c *Controller) Write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = value&1 != 0

	if wasStrobe && !c.strobe {
		c.shiftRegister = c.buttons
		c.bitPosition = 0
	}
}

// Read shifts out one bit (LSB first) per call. While strobe is held
// high, every read returns the live A-button state instead of advancing;
// reads past the eighth bit return 0, matching the register's serial
// clear-to-zero tail.
func (c *Controller) Read() uint8 {
	if c.strobe {
		return c.buttons & 1
	}

	if c.bitPosition >= 8 {
		c.bitPosition++
		return 0
	}

	bit := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return bit
}

// Reset clears all controller state, as on console power-up.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
	c.bitPosition = 0
}

// InputState owns both controller ports and dispatches $4016/$4017
// register traffic to them.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState builds an InputState with two idle controllers.
func NewInputState() *InputState {
	return &InputState{Controller1: New(), Controller2: New()}
}

// Reset resets both controllers.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons1 sets controller 1's button state.
func (is *InputState) SetButtons1(buttons [8]bool) { is.Controller1.SetButtons(buttons) }

// SetButtons2 sets controller 2's button state.
func (is *InputState) SetButtons2(buttons [8]bool) { is.Controller2.SetButtons(buttons) }

// Read dispatches a read of $4016 or $4017. Bit 6 of the $4017 result is
// forced high, matching the open-bus bit real hardware exposes on that
// port.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write dispatches a strobe write to $4016; both controllers latch from
// the same strobe line, as on real hardware.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
