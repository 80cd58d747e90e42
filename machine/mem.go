package machine

import "fmt"

// Perm is a permission bit set for a memory region.
type Perm uint8

const (
	PermR Perm = 1 << iota // readable
	PermW                  // writable
	PermX                  // executable
	PermU                  // accessible from user mode
)

// AccessKind tells which kind of memory access faulted.
type AccessKind uint8

const (
	AccessLoad AccessKind = iota
	AccessStore
	AccessFetch
)

func (k AccessKind) String() string {
	switch k {
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	case AccessFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// AccessError reports a disallowed or unmapped memory access.
type AccessError struct {
	Kind AccessKind
	Addr uint32
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("mem: %s fault at 0x%08x", e.Kind, e.Addr)
}

type region struct {
	name string
	base uint32
	perm Perm
	data []byte
}

func (r *region) contains(addr uint32, n uint32) bool {
	if addr < r.base {
		return false
	}
	// Widen before adding: n is guest-controlled and may be close to 2^32,
	// and a wrapped sum would pass the bound it should fail.
	return uint64(addr-r.base)+uint64(n) <= uint64(len(r.data))
}

// Memory is a fixed table of permission-checked flat regions.
//
// There is no translation: addresses are physical, and any access that does
// not land entirely inside a mapped region faults with the access address.
type Memory struct {
	regions []*region
}

// NewMemory returns an empty memory map.
func NewMemory() *Memory {
	return &Memory{}
}

// Map adds a region. Regions must not overlap; Map does not check.
func (m *Memory) Map(name string, base, size uint32, perm Perm) {
	m.regions = append(m.regions, &region{
		name: name,
		base: base,
		perm: perm,
		data: make([]byte, size),
	})
}

func (m *Memory) find(addr, n uint32) *region {
	for _, r := range m.regions {
		if r.contains(addr, n) {
			return r
		}
	}
	return nil
}

func (m *Memory) access(addr, n uint32, need Perm, user bool, kind AccessKind) ([]byte, error) {
	r := m.find(addr, n)
	if r == nil {
		return nil, &AccessError{Kind: kind, Addr: addr}
	}
	if r.perm&need != need {
		return nil, &AccessError{Kind: kind, Addr: addr}
	}
	if user && r.perm&PermU == 0 {
		return nil, &AccessError{Kind: kind, Addr: addr}
	}
	off := addr - r.base
	return r.data[off : off+n], nil
}

// Fetch reads one instruction word. Fetch requires execute permission.
func (m *Memory) Fetch(addr uint32, user bool) (uint32, error) {
	b, err := m.access(addr, 4, PermX, user, AccessFetch)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// Load reads n bytes (n in {1, 2, 4}) little-endian.
func (m *Memory) Load(addr uint32, n uint32, user bool) (uint32, error) {
	b, err := m.access(addr, n, PermR, user, AccessLoad)
	if err != nil {
		return 0, err
	}
	var v uint32
	for i := uint32(0); i < n; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v, nil
}

// Store writes the low n bytes (n in {1, 2, 4}) of v little-endian.
func (m *Memory) Store(addr uint32, n uint32, v uint32, user bool) error {
	b, err := m.access(addr, n, PermW, user, AccessStore)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return nil
}

// Readable reports whether the whole n-byte range at addr could be read,
// without copying anything.
func (m *Memory) Readable(addr, n uint32, user bool) error {
	_, err := m.access(addr, n, PermR, user, AccessLoad)
	return err
}

// ReadBytes copies out a byte range, honoring user-mode checks when asked.
func (m *Memory) ReadBytes(addr uint32, p []byte, user bool) error {
	b, err := m.access(addr, uint32(len(p)), PermR, user, AccessLoad)
	if err != nil {
		return err
	}
	copy(p, b)
	return nil
}

// WriteBytes copies a byte range into memory.
func (m *Memory) WriteBytes(addr uint32, p []byte, user bool) error {
	b, err := m.access(addr, uint32(len(p)), PermW, user, AccessStore)
	if err != nil {
		return err
	}
	copy(b, p)
	return nil
}
