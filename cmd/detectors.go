package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/evd-tools/eve/internal/config"
	"github.com/evd-tools/eve/internal/model"
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "Inspect detector configuration",
}

var detectorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known detectors and their configuration state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enabled := make(map[model.DetectorID]bool, len(cfg.Detectors.Enabled))
		for _, name := range cfg.Detectors.Enabled {
			id, err := model.ParseDetectorID(name)
			if err != nil {
				return err
			}
			enabled[id] = true
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "DETECTOR\tENABLED\tCONFIG\tCOMMAND")
		for _, id := range model.AllDetectors {
			configState := "ok"
			command := ""
			inv, err := config.ResolveDetector(cfg.Detectors.ConfigDir, id)
			if err != nil {
				configState = "missing"
			} else {
				command = strings.Join(inv.Command, " ")
				if len(command) > 60 {
					command = command[:57] + "..."
				}
			}
			_, _ = fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", id, enabled[id], configState, command)
		}
		return w.Flush()
	},
}

var detectorsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Verify every enabled detector has a usable configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		invocations, err := config.ResolveDetectors(cfg.Detectors)
		if err != nil {
			return eris.Wrap(err, "detector configuration invalid")
		}
		fmt.Printf("%d detector(s) configured and resolvable\n", len(invocations))
		return nil
	},
}

func init() {
	detectorsCmd.AddCommand(detectorsListCmd)
	detectorsCmd.AddCommand(detectorsValidateCmd)
	rootCmd.AddCommand(detectorsCmd)
}
