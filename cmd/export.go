package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/queueing-sim/sim"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

// writeOutput writes v as JSON or t as CSV to --out, or to the command's
// stdout when --out is empty.
func writeOutput(cmd *cobra.Command, v any, t sim.Table) error {
	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				logrus.Errorf("closing %s: %v", outPath, cerr)
			}
		}()
		w = f
	}
	if err := encode(w, format, v, t); err != nil {
		return err
	}
	if outPath != "" {
		logrus.Infof("Output written to %s", outPath)
	}
	return nil
}

func encode(w io.Writer, format string, v any, t sim.Table) error {
	switch format {
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Header); err != nil {
			return fmt.Errorf("writing csv header: %w", err)
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return fmt.Errorf("writing csv rows: %w", err)
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
}
