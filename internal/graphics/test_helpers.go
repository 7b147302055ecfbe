//go:build !headless

package graphics

// GetFrameBufferForTesting exposes the window's last rendered frame for tests.
func (w *EbitengineWindow) GetFrameBufferForTesting() [256 * 240]uint32 {
	if w.game == nil {
		return [256 * 240]uint32{}
	}
	return w.game.frameBuffer
}

// GetGameForTesting exposes the underlying EbitengineGame for tests.
func (w *EbitengineWindow) GetGameForTesting() *EbitengineGame {
	return w.game
}
