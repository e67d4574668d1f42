package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/padel-featurizer/internal/application/featurize"
	"github.com/turtacn/padel-featurizer/internal/config"
	"github.com/turtacn/padel-featurizer/internal/featurizer/export"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

type featurizeOptions struct {
	output        string
	nJobs         int
	ignoreErrors  bool
	descriptors   bool
	fingerprints  bool
	timeout       time.Duration
	replaceNaN    bool
	noStandardize bool
	store         string
}

func newFeaturizeCmd() *cobra.Command {
	o := &featurizeOptions{}
	cmd := &cobra.Command{
		Use:   "featurize INPUT",
		Short: "Featurize the molecules in INPUT (.smi, .txt, .csv or - for stdin)",
		Long: "Featurize reads SMILES from INPUT and writes one row per molecule.\n" +
			"The output format follows the --out extension (.csv, .tsv, .json, .npy, .xlsx);\n" +
			"without --out, CSV is written to stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeaturize(cmd, args[0], o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.output, "out", "-", "output file; the extension selects the format")
	f.IntVar(&o.nJobs, "n-jobs", 1, "parallel PaDEL invocations (<= 0 uses every CPU)")
	f.BoolVar(&o.ignoreErrors, "ignore-errors", false, "drop molecules that fail instead of failing the batch")
	f.BoolVar(&o.descriptors, "descriptors", true, "compute 1D/2D descriptors")
	f.BoolVar(&o.fingerprints, "fingerprints", true, "compute fingerprints")
	f.DurationVar(&o.timeout, "timeout", config.DefaultPadelTimeout, "PaDEL time limit per batch (0 disables)")
	f.BoolVar(&o.replaceNaN, "replace-nan", false, "replace NaN values with 0")
	f.BoolVar(&o.noStandardize, "no-standardize", false, "skip salt removal and canonicalization")
	f.StringVar(&o.store, "store", "", "feature store driver (none, memory, redis, postgres, sqlite)")
	return cmd
}

// applyOverrides copies explicitly set flags onto the configuration.
func (o *featurizeOptions) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("n-jobs") {
		cfg.Transformer.NJobs = o.nJobs
	}
	if f.Changed("descriptors") {
		cfg.Padel.Descriptors = o.descriptors
	}
	if f.Changed("fingerprints") {
		cfg.Padel.Fingerprints = o.fingerprints
	}
	if f.Changed("timeout") {
		cfg.Padel.Timeout = o.timeout
	}
	if f.Changed("replace-nan") {
		cfg.Padel.ReplaceNaN = o.replaceNaN
	}
	if f.Changed("no-standardize") {
		cfg.Padel.DoNotStandardize = o.noStandardize
	}
	if f.Changed("store") {
		cfg.Store.Driver = o.store
	}
}

func runFeaturize(cmd *cobra.Command, input string, o *featurizeOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	o.applyOverrides(cmd, cliCtx.Config)

	smiles, err := ReadSMILESFile(input)
	if err != nil {
		return err
	}
	if len(smiles) == 0 {
		return errors.New(errors.ErrCodeMoleculeEmptyInput, "no molecules in input").WithDetail(input)
	}

	rt, err := cliCtx.Runtime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	req := &featurize.Request{SMILES: smiles, IgnoreErrors: o.ignoreErrors}
	resp, err := rt.Service.Featurize(cmd.Context(), req)
	if err != nil {
		return err
	}
	for _, i := range resp.Failed() {
		cliCtx.Logger.Warn("molecule dropped", logging.Int("index", i), logging.String("smiles", smiles[i]))
	}

	table := resp.Table(req)
	if o.output == "-" {
		if err := (export.CSV{}).Write(cmd.OutOrStdout(), table); err != nil {
			return err
		}
	} else if err := export.WriteFile(o.output, table); err != nil {
		return err
	}

	PrintSuccess(cmd, fmt.Sprintf("featurized %d/%d molecules, %d columns in %s",
		len(resp.Rows), resp.Requested, len(resp.Columns), resp.Duration.Round(time.Millisecond)))
	return nil
}
