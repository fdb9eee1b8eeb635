package ft232h

import "testing"

var pinUses = []PinUse{PinUseI2C, PinUseSPI, PinUseOutput}

func TestAllocateConflictKeepsOwner(t *testing.T) {
	for idx := uint8(0); idx < NumPins; idx++ {
		for _, first := range pinUses {
			for _, second := range pinUses {
				var table pinTable
				if pe := table.allocate(first, idx); pe != nil {
					t.Fatalf("pin %d: first allocation for %s failed: %s", idx, first, pe)
				}
				pe := table.allocate(second, idx)
				if pe == nil {
					t.Fatalf("pin %d: %s after %s succeeded", idx, second, first)
				}
				if pe.Kind != PinConflict || pe.Pin != idx || pe.Current != first || pe.Requested != second {
					t.Fatalf("pin %d: conflict = %+v", idx, pe)
				}
				if use, ok := table.owner(idx); !ok || use != first {
					t.Fatalf("pin %d: owner = %s, want %s", idx, use, first)
				}
				for other := uint8(0); other < NumPins; other++ {
					if _, ok := table.owner(other); ok && other != idx {
						t.Fatalf("pin %d: pin %d claimed as a side effect", idx, other)
					}
				}
			}
		}
	}
}

func TestAllocateRejectsWithoutMutation(t *testing.T) {
	tests := []struct {
		name string
		pre  []uint8
		use  PinUse
		idxs []uint8
		kind PreconditionKind
	}{
		{name: "out of range", use: PinUseOutput, idxs: []uint8{8}, kind: PinOutOfRange},
		{name: "far out of range", use: PinUseOutput, idxs: []uint8{255}, kind: PinOutOfRange},
		{name: "valid then out of range", use: PinUseSPI, idxs: []uint8{AD0, 8}, kind: PinOutOfRange},
		{name: "bus over claimed pin", pre: []uint8{AD2}, use: PinUseI2C, idxs: []uint8{AD0, AD1, AD2}, kind: PinConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var table pinTable
			if pe := table.allocate(PinUseOutput, tt.pre...); pe != nil {
				t.Fatalf("setup allocation failed: %s", pe)
			}
			before := table

			pe := table.allocate(tt.use, tt.idxs...)
			if pe == nil || pe.Kind != tt.kind {
				t.Fatalf("allocate = %v, want kind %d", pe, tt.kind)
			}
			if table != before {
				t.Fatalf("ledger changed on rejection: %v -> %v", before, table)
			}
		})
	}
}
