package wire

import "testing"

func TestParseType(t *testing.T) {
	cases := []struct {
		name string
		want Type
		size int
	}{
		{"uint8_t", Uint8, 1},
		{"int8_t", Int8, 1},
		{"uint16_t", Uint16, 2},
		{"int16_t", Int16, 2},
		{"uint32_t", Uint32, 4},
		{"int32_t", Int32, 4},
		{"uint64_t", Uint64, 8},
		{"int64_t", Int64, 8},
		{"float", Float, 4},
		{"double", Double, 8},
		{"char", Char, 1},
	}
	for _, c := range cases {
		got, err := ParseType(c.name)
		if err != nil {
			t.Fatalf("ParseType(%q): %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("ParseType(%q) = %v, want %v", c.name, got, c.want)
		}
		if got.Size() != c.size {
			t.Errorf("%v.Size() = %d, want %d", got, got.Size(), c.size)
		}
	}
}

func TestParseTypeUnknown(t *testing.T) {
	if _, err := ParseType("nonsense_t"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestWireGroupDescendingOrder(t *testing.T) {
	if Uint64.WireGroup() <= Uint32.WireGroup() {
		t.Fatal("expected uint64 wire group to exceed uint32's")
	}
	if Uint32.WireGroup() <= Uint16.WireGroup() {
		t.Fatal("expected uint32 wire group to exceed uint16's")
	}
	if Uint16.WireGroup() <= Uint8.WireGroup() {
		t.Fatal("expected uint16 wire group to exceed uint8's")
	}
}

func TestDefaultTestValueNonZero(t *testing.T) {
	for tt := Uint8; tt <= Char; tt++ {
		v := tt.DefaultTestValue(3)
		if v == nil {
			t.Errorf("%v.DefaultTestValue(3) = nil", tt)
		}
	}
}
