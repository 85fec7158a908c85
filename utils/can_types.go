package utils

import "sort"

type SignalDef struct {
	Name         string
	StartBit     int
	BitLength    int
	LittleEndian bool
	Signed       bool
	Factor       float64
	Offset       float64
	Min          float64
	Max          float64
	Default      float64
	Unit         string
	Comment      string
}

// FrameDef is one message of a signal map. ID is the 29-bit (or 11-bit) identifier
// without the DBC extended-frame flag.
type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
}

// CANMap is built once by a loader and only read afterwards, so concurrent decoders
// may share it without locking.
type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func NewCANMap() *CANMap {
	return &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}
}

func (m *CANMap) add(fd *FrameDef) {
	m.ByID[fd.ID] = fd
	if fd.Name != "" {
		m.ByName[fd.Name] = fd
	}
}

func (m *CANMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ByID)
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Frames returns all frame definitions ordered by ID.
func (m *CANMap) Frames() []*FrameDef {
	out := make([]*FrameDef, 0, len(m.ByID))
	for _, fd := range m.ByID {
		out = append(out, fd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
