package cli

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/padel-featurizer/internal/bootstrap"
)

// ColumnList is the output of padelfeat columns.
type ColumnList struct {
	Featurizer string   `json:"featurizer"`
	Count      int      `json:"count"`
	Columns    []string `json:"columns"`
}

func (c ColumnList) String() string { return strings.Join(c.Columns, "\n") }

func (c ColumnList) TableHeaders() []string { return []string{"#", "COLUMN"} }

func (c ColumnList) TableRows() [][]string {
	rows := make([][]string, len(c.Columns))
	for i, name := range c.Columns {
		rows[i] = []string{strconv.Itoa(i), name}
	}
	return rows
}

func newColumnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "Probe PaDEL and list the output columns for the configured params",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			rt, err := cliCtx.Runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			cols := rt.Service.Columns()
			return PrintResult(cmd, ColumnList{Featurizer: rt.Service.Name(), Count: len(cols), Columns: cols})
		},
	}
}

// params prints the calculator parameters without probing PaDEL.  Text
// output is YAML, which DecodeParams reads back.
func newParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "Print the calculator parameters as YAML (or JSON with -o json)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			p := bootstrap.Params(cliCtx.Config.Padel)
			if strings.EqualFold(cliCtx.OutputFormat, "json") {
				return printJSON(cmd, p)
			}
			out, err := yaml.Marshal(p)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// VersionInfo is the output of padelfeat version.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("padelfeat %s (commit %s, built %s, %s %s)", v.Version, v.Commit, v.BuildDate, v.GoVersion, v.Platform)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return PrintResult(cmd, VersionInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			})
		},
	}
}
