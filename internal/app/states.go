package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nesvm/internal/bus"
)

// StateManager persists and restores full machine snapshots to/from disk.
type StateManager struct {
	saveDirectory string
	maxSlots      int
	initialized   bool
}

// SaveState is the on-disk representation of one save slot.
type SaveState struct {
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	ROMPath     string    `json:"rom_path"`
	ROMChecksum string    `json:"rom_checksum"`
	SlotNumber  int       `json:"slot_number"`
	Description string    `json:"description"`

	CPUState    CPUStateData `json:"cpu_state"`
	PPUState    PPUStateData `json:"ppu_state"`
	MemoryState MemoryData   `json:"memory_state"`

	FrameCount uint64 `json:"frame_count"`
	CycleCount uint64 `json:"cycle_count"`
}

// CPUStateData is the CPU register snapshot carried in a save file.
type CPUStateData struct {
	PC     uint16       `json:"pc"`
	A      uint8        `json:"a"`
	X      uint8        `json:"x"`
	Y      uint8        `json:"y"`
	SP     uint8        `json:"sp"`
	Cycles uint64       `json:"cycles"`
	Flags  CPUFlagsData `json:"flags"`
}

// CPUFlagsData is the processor status register, unpacked for readability.
type CPUFlagsData struct {
	N bool `json:"n"`
	V bool `json:"v"`
	B bool `json:"b"`
	D bool `json:"d"`
	I bool `json:"i"`
	Z bool `json:"z"`
	C bool `json:"c"`
}

// PPUStateData is the PPU's timing position and internal latches.
type PPUStateData struct {
	PPUCtrl, PPUMask, PPUStatus, OAMAddr uint8
	V, T                                 uint16
	X                                    uint8
	W                                    bool
	ReadBuffer                           uint8
	Scanline, Cycle                      int
	FrameCount                           uint64
	OddFrame                             bool
	OAM                                  []uint8 `json:"oam"`
}

// MemoryData carries the 2KiB internal RAM and, if the cartridge has a
// battery, its SRAM contents. encoding/json encodes []byte as base64.
type MemoryData struct {
	RAM  []uint8 `json:"ram"`
	SRAM []uint8 `json:"sram,omitempty"`
}

// StateSlotInfo summarizes one save slot for a slot-picker UI.
type StateSlotInfo struct {
	SlotNumber  int       `json:"slot_number"`
	Used        bool      `json:"used"`
	Timestamp   time.Time `json:"timestamp"`
	ROMPath     string    `json:"rom_path"`
	Description string    `json:"description"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
}

// NewStateManager creates a state manager rooted at saveDirectory,
// creating it if necessary.
func NewStateManager(saveDirectory string) *StateManager {
	manager := &StateManager{
		saveDirectory: saveDirectory,
		maxSlots:      10,
	}

	if err := manager.initialize(); err != nil {
		fmt.Printf("warning: state manager initialization failed: %v\n", err)
	}

	return manager
}

func (sm *StateManager) initialize() error {
	if err := os.MkdirAll(sm.saveDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %w", err)
	}
	sm.initialized = true
	return nil
}

// SaveState captures the bus's complete machine state into slot.
func (sm *StateManager) SaveState(b *bus.Bus, slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	state := sm.capture(b, slot, romPath)

	filePath := sm.getSlotFilePath(slot, romPath)
	if err := sm.saveToFile(state, filePath); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// capture builds a SaveState from the bus's current snapshot.
func (sm *StateManager) capture(b *bus.Bus, slot int, romPath string) *SaveState {
	snapshot := b.GetState()

	state := &SaveState{
		Version:     "1.0",
		Timestamp:   time.Now(),
		ROMPath:     romPath,
		ROMChecksum: sm.calculateROMChecksum(romPath),
		SlotNumber:  slot,
		Description: fmt.Sprintf("Save %s", time.Now().Format("2006-01-02 15:04:05")),
		FrameCount:  snapshot.FrameCount,
		CycleCount:  snapshot.CPUCycles,
		CPUState: CPUStateData{
			PC:     snapshot.CPU.PC,
			A:      snapshot.CPU.A,
			X:      snapshot.CPU.X,
			Y:      snapshot.CPU.Y,
			SP:     snapshot.CPU.SP,
			Cycles: snapshot.CPU.Cycles,
			Flags:  statusByteToFlags(snapshot.CPU.Status),
		},
		PPUState: PPUStateData{
			PPUCtrl:    snapshot.PPU.PPUCtrl,
			PPUMask:    snapshot.PPU.PPUMask,
			PPUStatus:  snapshot.PPU.PPUStatus,
			OAMAddr:    snapshot.PPU.OAMAddr,
			V:          snapshot.PPU.V,
			T:          snapshot.PPU.T,
			X:          snapshot.PPU.X,
			W:          snapshot.PPU.W,
			ReadBuffer: snapshot.PPU.ReadBuffer,
			Scanline:   snapshot.PPU.Scanline,
			Cycle:      snapshot.PPU.Cycle,
			FrameCount: snapshot.PPU.FrameCount,
			OddFrame:   snapshot.PPU.OddFrame,
			OAM:        append([]uint8(nil), snapshot.PPU.OAM[:]...),
		},
		MemoryState: MemoryData{
			RAM: append([]uint8(nil), snapshot.RAM[:]...),
		},
	}

	if cart := b.GetCartridge(); cart != nil && cart.HasBattery() {
		state.MemoryState.SRAM = append([]uint8(nil), cart.SRAM()...)
	}

	return state
}

// LoadState restores the bus's machine state from slot.
func (sm *StateManager) LoadState(b *bus.Bus, slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	filePath := sm.getSlotFilePath(slot, romPath)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("save state not found in slot %d", slot)
	}

	state, err := sm.loadFromFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	if err := sm.validateSaveState(state, romPath); err != nil {
		return fmt.Errorf("invalid save state: %w", err)
	}

	return sm.restoreState(b, state)
}

func (sm *StateManager) saveToFile(state *SaveState, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (sm *StateManager) loadFromFile(filePath string) (*SaveState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var state SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (sm *StateManager) validateSaveState(state *SaveState, currentROMPath string) error {
	if state.Version == "" {
		return fmt.Errorf("missing version information")
	}
	if state.ROMPath != currentROMPath {
		return fmt.Errorf("save state is for a different ROM")
	}
	if state.ROMChecksum != sm.calculateROMChecksum(currentROMPath) {
		return fmt.Errorf("save state checksum does not match the loaded ROM")
	}
	if len(state.MemoryState.RAM) != 0x800 {
		return fmt.Errorf("corrupt save state: RAM snapshot is %d bytes, want 2048", len(state.MemoryState.RAM))
	}
	return nil
}

// restoreState rebuilds a bus.State from the save file and applies it,
// including cartridge battery SRAM when the loaded cartridge has one.
func (sm *StateManager) restoreState(b *bus.Bus, state *SaveState) error {
	var snapshot bus.State

	snapshot.FrameCount = state.FrameCount
	snapshot.CPUCycles = state.CycleCount

	snapshot.CPU.PC = state.CPUState.PC
	snapshot.CPU.A = state.CPUState.A
	snapshot.CPU.X = state.CPUState.X
	snapshot.CPU.Y = state.CPUState.Y
	snapshot.CPU.SP = state.CPUState.SP
	snapshot.CPU.Cycles = state.CPUState.Cycles
	snapshot.CPU.Status = flagsToStatusByte(state.CPUState.Flags)

	snapshot.PPU.PPUCtrl = state.PPUState.PPUCtrl
	snapshot.PPU.PPUMask = state.PPUState.PPUMask
	snapshot.PPU.PPUStatus = state.PPUState.PPUStatus
	snapshot.PPU.OAMAddr = state.PPUState.OAMAddr
	snapshot.PPU.V = state.PPUState.V
	snapshot.PPU.T = state.PPUState.T
	snapshot.PPU.X = state.PPUState.X
	snapshot.PPU.W = state.PPUState.W
	snapshot.PPU.ReadBuffer = state.PPUState.ReadBuffer
	snapshot.PPU.Scanline = state.PPUState.Scanline
	snapshot.PPU.Cycle = state.PPUState.Cycle
	snapshot.PPU.FrameCount = state.PPUState.FrameCount
	snapshot.PPU.OddFrame = state.PPUState.OddFrame
	copy(snapshot.PPU.OAM[:], state.PPUState.OAM)

	copy(snapshot.RAM[:], state.MemoryState.RAM)

	b.SetState(snapshot)

	if cart := b.GetCartridge(); cart != nil && cart.HasBattery() && len(state.MemoryState.SRAM) > 0 {
		copy(cart.SRAM(), state.MemoryState.SRAM)
	}

	return nil
}

func statusByteToFlags(status uint8) CPUFlagsData {
	return CPUFlagsData{
		N: status&0x80 != 0,
		V: status&0x40 != 0,
		B: status&0x10 != 0,
		D: status&0x08 != 0,
		I: status&0x04 != 0,
		Z: status&0x02 != 0,
		C: status&0x01 != 0,
	}
}

func flagsToStatusByte(flags CPUFlagsData) uint8 {
	var status uint8 = 0x20
	if flags.N {
		status |= 0x80
	}
	if flags.V {
		status |= 0x40
	}
	if flags.B {
		status |= 0x10
	}
	if flags.D {
		status |= 0x08
	}
	if flags.I {
		status |= 0x04
	}
	if flags.Z {
		status |= 0x02
	}
	if flags.C {
		status |= 0x01
	}
	return status
}

// getSlotFilePath returns the on-disk path for a slot, scoped to the
// ROM's base name so different games don't collide in the same directory.
func (sm *StateManager) getSlotFilePath(slot int, romPath string) string {
	romName := filepath.Base(romPath)
	romNameWithoutExt := romName[:len(romName)-len(filepath.Ext(romName))]
	fileName := fmt.Sprintf("%s_slot_%d.save", romNameWithoutExt, slot)
	return filepath.Join(sm.saveDirectory, fileName)
}

// calculateROMChecksum returns the hex-encoded SHA-256 digest of the ROM
// file, used to reject a save state loaded against the wrong image.
func (sm *StateManager) calculateROMChecksum(romPath string) string {
	data, err := os.ReadFile(romPath)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GetSlotInfo summarizes every slot for romPath, used or not.
func (sm *StateManager) GetSlotInfo(romPath string) []StateSlotInfo {
	slots := make([]StateSlotInfo, sm.maxSlots)

	for i := 0; i < sm.maxSlots; i++ {
		slotInfo := StateSlotInfo{SlotNumber: i}

		filePath := sm.getSlotFilePath(i, romPath)
		if stat, err := os.Stat(filePath); err == nil {
			slotInfo.Used = true
			slotInfo.FilePath = filePath
			slotInfo.FileSize = stat.Size()
			slotInfo.Timestamp = stat.ModTime()

			if state, err := sm.loadFromFile(filePath); err == nil {
				slotInfo.ROMPath = state.ROMPath
				slotInfo.Description = state.Description
				slotInfo.Timestamp = state.Timestamp
			}
		}

		slots[i] = slotInfo
	}

	return slots
}

// DeleteState removes the save file in slot, if any.
func (sm *StateManager) DeleteState(slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d", slot)
	}

	filePath := sm.getSlotFilePath(slot, romPath)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("save state not found in slot %d", slot)
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete save state: %w", err)
	}
	return nil
}

// HasSaveState reports whether slot is occupied for romPath.
func (sm *StateManager) HasSaveState(slot int, romPath string) bool {
	if slot < 0 || slot >= sm.maxSlots {
		return false
	}
	_, err := os.Stat(sm.getSlotFilePath(slot, romPath))
	return err == nil
}

// GetMaxSlots returns the number of save slots available.
func (sm *StateManager) GetMaxSlots() int { return sm.maxSlots }

// SetMaxSlots changes the number of save slots available.
func (sm *StateManager) SetMaxSlots(slots int) {
	if slots > 0 {
		sm.maxSlots = slots
	}
}

// GetSaveDirectory returns the directory save states are written to.
func (sm *StateManager) GetSaveDirectory() string { return sm.saveDirectory }

// SetSaveDirectory changes the save directory, creating it if needed.
func (sm *StateManager) SetSaveDirectory(directory string) error {
	sm.saveDirectory = directory
	return sm.initialize()
}

// ExportState writes the bus's current state to an arbitrary file,
// outside the slot-numbering scheme.
func (sm *StateManager) ExportState(b *bus.Bus, filePath string, romPath string) error {
	state := sm.capture(b, -1, romPath)
	state.Description = fmt.Sprintf("Export %s", time.Now().Format("2006-01-02 15:04:05"))
	return sm.saveToFile(state, filePath)
}

// ImportState restores the bus's state from an arbitrary file written by
// ExportState.
func (sm *StateManager) ImportState(b *bus.Bus, filePath string, romPath string) error {
	state, err := sm.loadFromFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to import state: %w", err)
	}
	if err := sm.validateSaveState(state, romPath); err != nil {
		return fmt.Errorf("invalid imported state: %w", err)
	}
	return sm.restoreState(b, state)
}

// Cleanup releases the state manager; subsequent slot operations will
// fail until re-initialized.
func (sm *StateManager) Cleanup() error {
	sm.initialized = false
	return nil
}

// StateManagerStats summarizes slot usage for romPath.
type StateManagerStats struct {
	MaxSlots      int    `json:"max_slots"`
	UsedSlots     int    `json:"used_slots"`
	FreeSlots     int    `json:"free_slots"`
	TotalSize     int64  `json:"total_size"`
	SaveDirectory string `json:"save_directory"`
	Initialized   bool   `json:"initialized"`
}

// GetStateManagerStats reports slot usage statistics for romPath.
func (sm *StateManager) GetStateManagerStats(romPath string) StateManagerStats {
	slots := sm.GetSlotInfo(romPath)

	var usedSlots int
	var totalSize int64
	for _, slot := range slots {
		if slot.Used {
			usedSlots++
			totalSize += slot.FileSize
		}
	}

	return StateManagerStats{
		MaxSlots:      sm.maxSlots,
		UsedSlots:     usedSlots,
		FreeSlots:     sm.maxSlots - usedSlots,
		TotalSize:     totalSize,
		SaveDirectory: sm.saveDirectory,
		Initialized:   sm.initialized,
	}
}
