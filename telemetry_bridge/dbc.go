package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"can-telemetry-core/j1939"
	"can-telemetry-core/utils"
)

var dbcCmd = &cobra.Command{
	Use:   "dbc <file.dbc|file.csv>",
	Short: "list the messages and signals of a DBC file or CSV signal map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadTableFile(args[0], app.log)
		if err != nil {
			return err
		}
		return printTable(cmd.OutOrStdout(), m)
	},
}

func printTable(w io.Writer, m *utils.CANMap) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, fd := range m.Frames() {
		label := ""
		if fd.ID > 0x7FF {
			label = j1939.PGNName(j1939.PGN(fd.ID))
		}
		fmt.Fprintf(tw, "0x%08X\t%s\tdlc=%d\tcycle=%dms\t%s\n", fd.ID, fd.Name, fd.DLC, fd.CycleMS, label)
		for _, s := range fd.Signals {
			endian, sign := "1", "+"
			if !s.LittleEndian {
				endian = "0"
			}
			if s.Signed {
				sign = "-"
			}
			fmt.Fprintf(tw, "  %s\t%d|%d@%s%s\t(%g,%g)\t[%g|%g]\t%s\n",
				s.Name, s.StartBit, s.BitLength, endian, sign, s.Factor, s.Offset, s.Min, s.Max, s.Unit)
		}
	}
	return tw.Flush()
}
