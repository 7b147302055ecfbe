package cartridge

import "testing"

func TestLoadNROM128MirrorsBank(t *testing.T) {
	cart, err := newROMBuilder().
		withPRGSize(1).
		withResetVector(0x8000).
		withData(0x0000, []byte{0x10, 0x20}).
		buildCartridge()
	if err != nil {
		t.Fatalf("buildCartridge: %v", err)
	}

	if got := cart.ReadPRG(0x8000); got != 0x10 {
		t.Errorf("ReadPRG(0x8000) = 0x%02X, want 0x10", got)
	}
	if got := cart.ReadPRG(0xC000); got != 0x10 {
		t.Errorf("ReadPRG(0xC000) (mirrored) = 0x%02X, want 0x10", got)
	}
}

func TestLoadNROM256DoesNotMirror(t *testing.T) {
	cart, err := newROMBuilder().
		withPRGSize(2).
		withResetVector(0x8000).
		withData(0x0000, []byte{0xA0}).
		withData(0x4000, []byte{0xB0}).
		buildCartridge()
	if err != nil {
		t.Fatalf("buildCartridge: %v", err)
	}

	if got := cart.ReadPRG(0x8000); got != 0xA0 {
		t.Errorf("ReadPRG(0x8000) = 0x%02X, want 0xA0", got)
	}
	if got := cart.ReadPRG(0xC000); got != 0xB0 {
		t.Errorf("ReadPRG(0xC000) = 0x%02X, want 0xB0", got)
	}
}

func TestUnsupportedMapperIsFatal(t *testing.T) {
	_, err := newROMBuilder().withPRGSize(1).withMapper(4).buildCartridge()
	if err == nil {
		t.Fatal("expected an error for mapper 4, got nil")
	}
	var mapperErr *UnsupportedMapperError
	if !asUnsupportedMapperError(err, &mapperErr) {
		t.Fatalf("expected *UnsupportedMapperError, got %T: %v", err, err)
	}
	if mapperErr.MapperID != 4 {
		t.Errorf("MapperID = %d, want 4", mapperErr.MapperID)
	}
}

func asUnsupportedMapperError(err error, target **UnsupportedMapperError) bool {
	e, ok := err.(*UnsupportedMapperError)
	if ok {
		*target = e
	}
	return ok
}

func TestSRAMPersistsAcrossReadsWrites(t *testing.T) {
	cart, err := newROMBuilder().withPRGSize(1).withResetVector(0x8000).buildCartridge()
	if err != nil {
		t.Fatalf("buildCartridge: %v", err)
	}

	cart.WritePRG(0x6000, 0x77)
	if got := cart.ReadPRG(0x6000); got != 0x77 {
		t.Errorf("SRAM readback = 0x%02X, want 0x77", got)
	}
}

func TestCHRRAMIsWritableWhenROMIsBlank(t *testing.T) {
	cart, err := newROMBuilder().withPRGSize(1).withResetVector(0x8000).buildCartridge()
	if err != nil {
		t.Fatalf("buildCartridge: %v", err)
	}

	cart.WriteCHR(0x0010, 0x5A)
	if got := cart.ReadCHR(0x0010); got != 0x5A {
		t.Errorf("CHR RAM readback = 0x%02X, want 0x5A", got)
	}
}
