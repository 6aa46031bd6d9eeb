package verify

import "testing"

func TestParseZone(t *testing.T) {
	for n := 0; n <= 4; n++ {
		z, err := ParseZone(n)
		if err != nil {
			t.Fatalf("ParseZone(%d): %v", n, err)
		}
		if int(z) != n {
			t.Fatalf("ParseZone(%d) = %d", n, z)
		}
	}

	for _, n := range []int{-1, 5, 100} {
		z, err := ParseZone(n)
		if err == nil {
			t.Fatalf("ParseZone(%d): expected error", n)
		}
		if z != All {
			t.Fatalf("ParseZone(%d) = %v want all", n, z)
		}
	}
}

func TestZoneAllows(t *testing.T) {
	countries := []string{"CN", "HK", "MO", "TW", "US", "cn", ""}

	tests := []struct {
		zone Zone
		want []bool
	}{
		{zone: InlandCN, want: []bool{true, false, false, false, false, true, false}},
		{zone: OutsideCN, want: []bool{false, true, true, true, false, false, false}},
		{zone: AllCN, want: []bool{true, true, true, true, false, true, false}},
		{zone: ExcludeCN, want: []bool{false, false, false, false, true, false, false}},
		{zone: All, want: []bool{true, true, true, true, true, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.zone.String(), func(t *testing.T) {
			for i, c := range countries {
				if got := tt.zone.Allows(c); got != tt.want[i] {
					t.Errorf("Allows(%q) = %v want %v", c, got, tt.want[i])
				}
			}
		})
	}
}

func TestZoneString(t *testing.T) {
	if got := Zone(9).String(); got != "zone(9)" {
		t.Fatalf("got %q", got)
	}
}
