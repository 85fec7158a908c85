package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"can-telemetry-core/telemetry"
)

// JSONLines writes one JSON record per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) Deliver(_ context.Context, rec telemetry.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return errors.Wrap(j.enc.Encode(rec), "write record")
}

var (
	idColor    = color.New(color.FgGreen).SprintfFunc()
	nameColor  = color.New(color.FgHiBlue).SprintfFunc()
	valueColor = color.New(color.FgYellow).SprintfFunc()
	emptyColor = color.New(color.FgRed).SprintfFunc()
)

// Console renders records for a terminal.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Deliver(_ context.Context, rec telemetry.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, FormatRecord(rec))
	return err
}

// FormatRecord renders the id, the flat fields and the signals sorted by name.
func FormatRecord(rec telemetry.Record) string {
	var out strings.Builder
	out.WriteString(idColor("0x%08X", rec.ID))
	out.WriteString(" || ")
	out.WriteString(fmt.Sprintf("rpm=%-8.1f speed=%-6.1f coolant=%-6.1f", rec.RPM, rec.Speed, rec.CoolantTemp))
	out.WriteString(" || ")

	if len(rec.Signals) == 0 {
		out.WriteString(emptyColor("no signals"))
		return out.String()
	}
	names := make([]string, 0, len(rec.Signals))
	for n := range rec.Signals {
		names = append(names, n)
	}
	sort.Strings(names)
	for i, n := range names {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(nameColor("%s", n) + "=" + valueColor("%g", rec.Signals[n]))
	}
	return out.String()
}
