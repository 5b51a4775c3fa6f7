package savestate

type filterMode uint8

const (
	filterAll filterMode = iota
	filterInclude
	filterExclude
)

// Filter selects which entity types a capture records.
type Filter struct {
	mode  filterMode
	types []TypeID
}

// All captures every registered type.
func All() Filter { return Filter{} }

// Include captures only the listed types.
func Include(types ...TypeID) Filter {
	return Filter{mode: filterInclude, types: types}
}

// Exclude captures every type except the listed ones.
func Exclude(types ...TypeID) Filter {
	return Filter{mode: filterExclude, types: types}
}

// Bits expands the filter into an include vector over n registered types.
// Unknown type ids are ignored.
func (f Filter) Bits(n int) []bool {
	bits := make([]bool, n)
	if f.mode != filterInclude {
		for i := range bits {
			bits[i] = true
		}
	}
	for _, id := range f.types {
		if id < 0 || int(id) >= n {
			continue
		}
		bits[id] = f.mode == filterInclude
	}
	return bits
}
