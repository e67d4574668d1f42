package padel

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

const (
	defaultJavaPath  = "java"
	defaultAttempts  = 3
	stderrTailBytes  = 2048
	waitDelay        = 2 * time.Second
	molNamePrefix    = "mol_"
	smilesFileSuffix = ".smi"
	outputFileSuffix = ".csv"
)

// ExecConfig configures how the PaDEL jar is launched.
type ExecConfig struct {
	JavaPath   string
	JarPath    string
	JavaOpts   []string
	Threads    int           // -1 lets PaDEL pick
	MaxRuntime time.Duration // per-molecule limit inside PaDEL; 0 disables
	WorkDir    string        // temp files live here; os.TempDir() when empty
	KeepFiles  bool
	Attempts   int // attempts for non-timeout failures; default 3
}

// ExecOption configures an ExecClient.
type ExecOption func(*ExecClient)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ExecOption {
	return func(c *ExecClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// withCommand replaces the command factory; tests use it to observe argv.
func withCommand(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) ExecOption {
	return func(c *ExecClient) { c.command = fn }
}

// ExecClient runs PaDEL-Descriptor as a subprocess: SMILES are written to a
// temporary .smi file, the jar writes a CSV, and the CSV is parsed back into
// records.
type ExecClient struct {
	cfg     ExecConfig
	logger  logging.Logger
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecClient validates cfg and returns a client.  A missing jar is
// reported immediately rather than on the first call.
func NewExecClient(cfg ExecConfig, opts ...ExecOption) (*ExecClient, error) {
	if cfg.JarPath == "" {
		return nil, errors.New(errors.ErrCodePadelJarNotFound, "padel jar path is empty")
	}
	if _, err := os.Stat(cfg.JarPath); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePadelJarNotFound, "padel jar not accessible").
			WithDetail(cfg.JarPath)
	}
	if cfg.JavaPath == "" {
		cfg.JavaPath = defaultJavaPath
	}
	if cfg.Threads == 0 {
		cfg.Threads = -1
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}

	c := &ExecClient{
		cfg:     cfg,
		logger:  logging.NewNopLogger(),
		command: exec.CommandContext,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// FromSMILES implements Client.
func (c *ExecClient) FromSMILES(ctx context.Context, smiles []string, opts Options) ([]Record, error) {
	if len(smiles) == 0 {
		return nil, errors.New(errors.ErrCodeMoleculeEmptyInput, "no SMILES supplied to padel")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(c.cfg.WorkDir, "padel-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePadelExecutionFailed, "cannot create padel work dir")
	}
	if !c.cfg.KeepFiles {
		defer os.RemoveAll(dir)
	}

	smiPath := filepath.Join(dir, "input"+smilesFileSuffix)
	csvPath := filepath.Join(dir, "output"+outputFileSuffix)
	if err := writeSMILESFile(smiPath, smiles); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePadelExecutionFailed, "cannot write smiles file")
	}

	args := c.buildArgs(smiPath, csvPath, opts)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		start := time.Now()
		lastErr = c.run(ctx, args)
		if lastErr == nil {
			c.logger.Debug("padel call finished",
				logging.Int("molecules", len(smiles)),
				logging.Int("attempt", attempt),
				logging.Duration("elapsed", time.Since(start)))
			break
		}
		if errors.IsCode(lastErr, errors.ErrCodePadelTimeout) || ctx.Err() != nil {
			return nil, lastErr
		}
		c.logger.Warn("padel call failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", c.cfg.Attempts),
			logging.Err(lastErr))
		_ = os.Remove(csvPath)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePadelEmptyOutput, "padel wrote no output file")
	}
	defer f.Close()

	names, rows, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}
	return orderRecords(names, rows, len(smiles))
}

// buildArgs assembles the java command line.  Descriptors enables both the 2D
// and the 3D blocks, matching what the descriptor schema is probed with.
// SMILES carry no coordinates, so PaDEL always generates a 3D conformer.
func (c *ExecClient) buildArgs(smiPath, csvPath string, opts Options) []string {
	args := make([]string, 0, 24)
	args = append(args, c.cfg.JavaOpts...)
	args = append(args, "-Djava.awt.headless=true", "-jar", c.cfg.JarPath)
	if opts.Descriptors {
		args = append(args, "-2d", "-3d")
	}
	if opts.Fingerprints {
		args = append(args, "-fingerprints")
	}
	maxRuntime := int64(-1)
	if c.cfg.MaxRuntime > 0 {
		maxRuntime = c.cfg.MaxRuntime.Milliseconds()
	}
	args = append(args,
		"-convert3d",
		"-retainorder",
		"-maxruntime", strconv.FormatInt(maxRuntime, 10),
		"-threads", strconv.Itoa(c.cfg.Threads),
		"-dir", smiPath,
		"-file", csvPath,
	)
	return args
}

func (c *ExecClient) run(ctx context.Context, args []string) error {
	cmd := c.command(ctx, c.cfg.JavaPath, args...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.Wrap(ctxErr, errors.ErrCodePadelTimeout, "padel call timed out")
		}
		return errors.Wrap(ctxErr, errors.ErrCodePadelExecutionFailed, "padel call cancelled")
	}
	return errors.Wrap(err, errors.ErrCodePadelExecutionFailed, "padel exited with an error").
		WithDetail(tail(stderr.Bytes(), stderrTailBytes))
}

func writeSMILESFile(path string, smiles []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for i, s := range smiles {
		fmt.Fprintf(w, "%s\t%s%d\n", s, molNamePrefix, i)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// orderRecords maps parsed rows back onto input positions using the molecule
// names written to the .smi file.  Rows without a recognisable name keep their
// file position.
func orderRecords(names []string, rows [][]string, want int) ([]Record, error) {
	if len(rows) != want {
		return nil, errors.Newf(errors.ErrCodePadelRecordCountMismatch,
			"padel returned %d records for %d molecules", len(rows), want)
	}

	nameIdx := -1
	for i, n := range names {
		if n == NameColumn {
			nameIdx = i
			break
		}
	}

	descNames := make([]string, 0, len(names))
	for i, n := range names {
		if i != nameIdx {
			descNames = append(descNames, n)
		}
	}

	out := make([]Record, want)
	filled := make([]bool, want)
	for pos, row := range rows {
		target := pos
		if nameIdx >= 0 {
			if idx, ok := parseMolName(row[nameIdx]); ok && idx < want && !filled[idx] {
				target = idx
			}
		}
		if filled[target] {
			return nil, errors.Newf(errors.ErrCodePadelRecordCountMismatch,
				"padel returned a duplicate record for molecule %d", target)
		}
		values := make([]string, 0, len(descNames))
		for i, v := range row {
			if i != nameIdx {
				values = append(values, v)
			}
		}
		out[target] = Record{Names: descNames, Values: values}
		filled[target] = true
	}
	return out, nil
}

func parseMolName(s string) (int, bool) {
	if len(s) <= len(molNamePrefix) || s[:len(molNamePrefix)] != molNamePrefix {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(molNamePrefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
