package utils

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.einride.tech/can/pkg/dbc"
)

const (
	dbcExtendedFlag    = 0x80000000
	canExtendedIDMask  = 0x1FFFFFFF
	independentSignals = "VECTOR__INDEPENDENT_SIG_MSG"
)

var (
	boLine = regexp.MustCompile(`^BO_\s+(\d+)\s+(\w+)\s*:\s*(\d+)`)
	sgLine = regexp.MustCompile(`^SG_\s+(\w+)(?:\s+[Mm]\d*)?\s*:\s*(\d+)\|(\d+)@([01])([+-])\s*\(\s*([^,\s]+)\s*,\s*([^)\s]+)\s*\)\s*\[\s*([^|\s]+)\s*\|\s*([^\]\s]+)\s*\]\s*"([^"]*)"`)
)

// DBCLoadInfo describes how a DBC document was turned into a CANMap.
type DBCLoadInfo struct {
	// Lenient is set when the full grammar parser rejected the document and the
	// BO_/SG_ line scanner produced the map instead.
	Lenient   bool
	StrictErr error
	Messages  int
	Signals   int
}

// LoadDBC reads and parses a DBC file.
func LoadDBC(path string) (*CANMap, DBCLoadInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, DBCLoadInfo{}, errors.Wrap(err, "read dbc file")
	}
	m, info := ParseDBC(filepath.Base(path), data)
	return m, info, nil
}

// ParseDBC never fails: documents the grammar parser cannot handle fall back to the
// line scanner, which skips anything it does not recognise.
func ParseDBC(name string, data []byte) (*CANMap, DBCLoadInfo) {
	var info DBCLoadInfo
	m, err := parseDBCStrict(name, data)
	if err != nil {
		info.Lenient = true
		info.StrictErr = err
		m = ParseDBCLines(string(data))
	}
	info.Messages = m.Len()
	for _, fd := range m.ByID {
		info.Signals += len(fd.Signals)
	}
	return m, info
}

func parseDBCStrict(name string, data []byte) (*CANMap, error) {
	p := dbc.NewParser(name, data)
	if err := p.Parse(); err != nil {
		return nil, errors.Wrap(err, "parse dbc")
	}

	m := NewCANMap()
	for _, def := range p.File().Defs {
		md, ok := def.(*dbc.MessageDef)
		if !ok || string(md.Name) == independentSignals {
			continue
		}
		fd := &FrameDef{
			ID:   normalizeDBCID(uint64(md.MessageID)),
			Name: string(md.Name),
			DLC:  int(md.Size),
		}
		for _, s := range md.Signals {
			fd.Signals = append(fd.Signals, SignalDef{
				Name:         string(s.Name),
				StartBit:     int(s.StartBit),
				BitLength:    int(s.Size),
				LittleEndian: !s.IsBigEndian,
				Signed:       s.IsSigned,
				Factor:       s.Factor,
				Offset:       s.Offset,
				Min:          s.Minimum,
				Max:          s.Maximum,
				Unit:         s.Unit,
			})
		}
		m.add(fd)
	}
	return m, nil
}

// ParseDBCLines recognises only `BO_ <id> <name>: <dlc>` and
// `SG_ <name> : <start>|<len>@<endian><sign> (<factor>,<offset>) [<min>|<max>] "<unit>"`.
// Malformed lines, and SG_ lines with no open BO_, are skipped.
func ParseDBCLines(text string) *CANMap {
	m := NewCANMap()
	var cur *FrameDef

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "BO_ "):
			cur = nil
			g := boLine.FindStringSubmatch(line)
			if g == nil {
				continue
			}
			id, err := strconv.ParseUint(g[1], 10, 64)
			if err != nil {
				continue
			}
			dlc, err := strconv.Atoi(g[3])
			if err != nil {
				continue
			}
			if g[2] == independentSignals {
				continue
			}
			cur = &FrameDef{ID: normalizeDBCID(id), Name: g[2], DLC: dlc}
			m.add(cur)
		case strings.HasPrefix(line, "SG_ "):
			if cur == nil {
				continue
			}
			if sig, ok := parseSGLine(line); ok {
				cur.Signals = append(cur.Signals, sig)
			}
		}
	}
	return m
}

func parseSGLine(line string) (SignalDef, bool) {
	g := sgLine.FindStringSubmatch(line)
	if g == nil {
		return SignalDef{}, false
	}
	start, err1 := strconv.Atoi(g[2])
	length, err2 := strconv.Atoi(g[3])
	factor, err3 := strconv.ParseFloat(g[6], 64)
	offset, err4 := strconv.ParseFloat(g[7], 64)
	min, err5 := strconv.ParseFloat(g[8], 64)
	max, err6 := strconv.ParseFloat(g[9], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return SignalDef{}, false
	}
	if err5 != nil || err6 != nil {
		min, max = 0, 0
	}
	return SignalDef{
		Name:         g[1],
		StartBit:     start,
		BitLength:    length,
		LittleEndian: g[4] == "1",
		Signed:       g[5] == "-",
		Factor:       factor,
		Offset:       offset,
		Min:          min,
		Max:          max,
		Unit:         g[10],
	}, true
}

func normalizeDBCID(id uint64) uint32 {
	if id&dbcExtendedFlag != 0 {
		return uint32(id & canExtendedIDMask)
	}
	return uint32(id)
}
