package pspaddr

import "testing"

func TestValidStride(t *testing.T) {
	for _, s := range []int{1, 2, 4} {
		if !ValidStride(s) {
			t.Errorf("stride %d should be valid", s)
		}
	}
	for _, s := range []int{0, 3, 8} {
		if ValidStride(s) {
			t.Errorf("stride %d should be invalid", s)
		}
	}
}

func TestValidRegisterSize(t *testing.T) {
	for _, s := range []int{1, 2, 4, 8} {
		if !ValidRegisterSize(s) {
			t.Errorf("size %d should be valid", s)
		}
	}
	for _, s := range []int{0, 3, 16} {
		if ValidRegisterSize(s) {
			t.Errorf("size %d should be invalid", s)
		}
	}
}

func TestTransferFlagsHas(t *testing.T) {
	f := FlagRead | FlagIncrAddr
	if !f.Has(FlagRead) || !f.Has(FlagIncrAddr) {
		t.Fatalf("expected Read and IncrAddr set")
	}
	if f.Has(FlagWrite) || f.Has(FlagMemset) {
		t.Fatalf("expected Write and Memset unset")
	}
}

func TestAddressString(t *testing.T) {
	a := SMN(3, 0x1000)
	if got := a.String(); got != "smn(ccd=3, 0x1000)" {
		t.Fatalf("got %q", got)
	}
}
