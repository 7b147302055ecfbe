package graphics

import "testing"

func TestCreateBackendReturnsRequestedType(t *testing.T) {
	headless, err := CreateBackend(BackendHeadless)
	if err != nil {
		t.Fatalf("CreateBackend(headless): %v", err)
	}
	if headless.GetName() != "Headless" {
		t.Errorf("GetName() = %q, want %q", headless.GetName(), "Headless")
	}

	terminal, err := CreateBackend(BackendTerminal)
	if err != nil {
		t.Fatalf("CreateBackend(terminal): %v", err)
	}
	if terminal.GetName() != "Terminal" {
		t.Errorf("GetName() = %q, want %q", terminal.GetName(), "Terminal")
	}
}

func TestCreateBackendDefaultsToEbitengine(t *testing.T) {
	backend, err := CreateBackend(BackendType("unknown"))
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if backend.GetName() != "Ebitengine" {
		t.Errorf("GetName() = %q, want %q for an unrecognized backend type", backend.GetName(), "Ebitengine")
	}
}
