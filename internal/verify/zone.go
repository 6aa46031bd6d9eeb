package verify

import (
	"fmt"
	"slices"
	"strings"
)

// Zone selects which country codes qualify for the pool.
type Zone int8

const (
	// InlandCN keeps mainland China only.
	InlandCN Zone = iota
	// OutsideCN keeps Hong Kong, Macao and Taiwan only.
	OutsideCN
	// AllCN keeps mainland China, Hong Kong, Macao and Taiwan.
	AllCN
	// ExcludeCN keeps everything except AllCN's codes.
	ExcludeCN
	// All applies no filter.
	All
)

var (
	inlandCodes  = []string{"CN"}
	outsideCodes = []string{"HK", "MO", "TW"}
	greaterCodes = []string{"CN", "HK", "MO", "TW"}
)

// ParseZone converts the operator's 0-4 selector.
func ParseZone(n int) (Zone, error) {
	if n < int(InlandCN) || n > int(All) {
		return All, fmt.Errorf("zone %d out of range 0-4", n)
	}
	return Zone(n), nil
}

// Allows reports whether a proxy whose exit is in country qualifies. The
// code is matched case-insensitively. An empty code qualifies only for All.
func (z Zone) Allows(country string) bool {
	if z == All {
		return true
	}

	c := strings.ToUpper(strings.TrimSpace(country))
	if c == "" {
		return false
	}

	switch z {
	case InlandCN:
		return slices.Contains(inlandCodes, c)
	case OutsideCN:
		return slices.Contains(outsideCodes, c)
	case AllCN:
		return slices.Contains(greaterCodes, c)
	case ExcludeCN:
		return !slices.Contains(greaterCodes, c)
	default:
		return false
	}
}

func (z Zone) String() string {
	switch z {
	case InlandCN:
		return "inland-CN"
	case OutsideCN:
		return "outside-CN"
	case AllCN:
		return "all-CN"
	case ExcludeCN:
		return "exclude-CN"
	case All:
		return "all"
	default:
		return fmt.Sprintf("zone(%d)", int8(z))
	}
}
