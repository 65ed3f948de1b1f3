package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/class-shrinker/internal/classfile"
	"github.com/class-shrinker/internal/graph"
	"github.com/class-shrinker/internal/ingest"
	"github.com/class-shrinker/internal/keeprules"
	"github.com/class-shrinker/internal/shrinker"
	"github.com/class-shrinker/internal/state"
	"github.com/class-shrinker/internal/storage"
	"github.com/class-shrinker/pkg/config"
	apperrors "github.com/class-shrinker/pkg/errors"
	"github.com/class-shrinker/pkg/model"
	"github.com/class-shrinker/pkg/parallel"
	"github.com/class-shrinker/pkg/telemetry"
	"github.com/class-shrinker/pkg/utils"
	"github.com/class-shrinker/pkg/writer"
)

// shrinkFlags override the matching config keys when set.
type shrinkFlags struct {
	incremental  bool
	rules        string
	output       string
	report       string
	workers      int
	program      []string
	libraries    []string
	platformJars []string
	changed      []string
	explain      bool
}

func newShrinkCommand(root *rootOptions) *cobra.Command {
	f := &shrinkFlags{}
	c := &cobra.Command{
		Use:   "shrink",
		Short: "Run the shrinker over the configured inputs",
		Long: `Run the shrinker. Inputs, rules and state come from the config file;
flags add inputs and override single settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			logger := root.newLogger(cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runShrink(ctx, cfg, f.explain, logger, cmd.OutOrStdout())
		},
	}

	flags := c.Flags()
	flags.BoolVar(&f.incremental, "incremental", false, "Reuse the state of the previous run")
	flags.StringVar(&f.rules, "rules", "", "Keep rules file (YAML)")
	flags.StringVarP(&f.output, "output", "o", "", "Output directory")
	flags.StringVar(&f.report, "report", "", "Write a JSON run report (.gz for gzip)")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Maximum number of workers (0 = number of CPUs)")
	flags.StringArrayVar(&f.program, "program", nil, "Program jar or class directory (repeatable)")
	flags.StringArrayVar(&f.libraries, "library", nil, "Library jar or class directory (repeatable)")
	flags.StringArrayVar(&f.platformJars, "platform-jar", nil, "Platform jar (repeatable)")
	flags.StringArrayVar(&f.changed, "changed", nil, "Changed class file, relative to its program directory (repeatable)")
	flags.BoolVar(&f.explain, "explain", false, "Print why the why_are_you_keeping targets are kept")
	return c
}

func (f *shrinkFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("incremental") {
		cfg.Shrinker.Incremental = f.incremental
	}
	if f.rules != "" {
		cfg.Shrinker.Rules = f.rules
	}
	if f.output != "" {
		cfg.Shrinker.OutputDir = f.output
	}
	if f.report != "" {
		cfg.Shrinker.ReportFile = f.report
	}
	if changed("workers") {
		cfg.Shrinker.MaxWorkers = f.workers
	}
	for _, p := range f.program {
		cfg.Inputs.Program = append(cfg.Inputs.Program, config.ContentConfig{Path: p})
	}
	for _, p := range f.libraries {
		cfg.Inputs.Libraries = append(cfg.Inputs.Libraries, config.ContentConfig{Path: p})
	}
	cfg.Shrinker.PlatformJars = append(cfg.Shrinker.PlatformJars, f.platformJars...)
	markChanged(cfg.Inputs.Program, f.changed)
}

// markChanged records each changed file in the first program directory
// that contains it.
func markChanged(program []config.ContentConfig, files []string) {
	for _, rel := range files {
		rel = filepath.ToSlash(rel)
		for i := range program {
			content := &program[i]
			if content.IsJar() {
				continue
			}
			if _, err := os.Stat(filepath.Join(content.Path, filepath.FromSlash(rel))); err != nil {
				continue
			}
			content.ChangedFiles = append(content.ChangedFiles, config.ChangedFile{Path: rel, Status: model.StatusChanged.String()})
			break
		}
	}
}

func runShrink(ctx context.Context, cfg *config.Config, explain bool, logger utils.Logger, out io.Writer) (err error) {
	tcfg := telemetry.LoadFromEnv()
	tcfg.Enabled = tcfg.Enabled || cfg.Telemetry.Enabled
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		logger.Warn("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			logger.Warn("failed to shut down telemetry: %v", serr)
		}
	}()

	req, err := buildRequest(cfg)
	if err != nil {
		return err
	}
	scfg, err := buildShrinkerConfig(cfg)
	if err != nil {
		return err
	}

	output, err := storage.NewLocalProvider(cfg.Shrinker.OutputDir)
	if err != nil {
		return err
	}
	store, err := state.Open(stateConfig(cfg), state.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = apperrors.Wrap(apperrors.CodeStateError, "failed to close state store", cerr)
		}
	}()

	runner := shrinker.NewRunner(output,
		shrinker.WithConfig(scfg),
		shrinker.WithLogger(logger),
		shrinker.WithStore(store))
	res, err := runner.Run(ctx, req, cfg.Shrinker.Incremental)
	if err != nil {
		return err
	}

	kind := "full"
	if res.Incremental {
		kind = "incremental"
	}
	logger.Info("%s run done: %d classes written, %d deleted, %d invalid references",
		kind, len(res.Written), len(res.Deleted), len(res.Diagnostics))

	if explain {
		printTraces(out, res)
	}
	if cfg.Shrinker.ReportFile != "" {
		if err := writer.WriteFile(res.Report(Version), cfg.Shrinker.ReportFile); err != nil {
			return err
		}
		logger.Info("report written to %s", cfg.Shrinker.ReportFile)
	}
	return nil
}

// buildRequest loads the keep rules and converts the configured inputs.
func buildRequest(cfg *config.Config) (shrinker.Request, error) {
	req := shrinker.Request{
		Inputs: ingest.Inputs{
			PlatformJars: cfg.Shrinker.PlatformJars,
		},
		Rules: make(map[graph.CounterSet]*keeprules.RuleSet),
	}
	if len(cfg.Inputs.Program) == 0 {
		return req, apperrors.New(apperrors.CodeInvalidInput, "no program inputs configured")
	}
	req.Inputs.Program = []model.TransformInput{config.TransformInput(cfg.Inputs.Program)}
	if len(cfg.Inputs.Libraries) > 0 {
		req.Inputs.Libraries = []model.TransformInput{config.TransformInput(cfg.Inputs.Libraries)}
	}

	if cfg.Shrinker.Rules == "" {
		return req, apperrors.New(apperrors.CodeInvalidInput, "no keep rules configured")
	}
	for cs, path := range map[graph.CounterSet]string{
		graph.Shrink:         cfg.Shrinker.Rules,
		graph.LegacyMultidex: cfg.Shrinker.MultidexRules,
	} {
		if path == "" {
			continue
		}
		set, err := keeprules.LoadFile(path)
		if err != nil {
			return req, err
		}
		req.Rules[cs] = set
	}
	return req, nil
}

func buildShrinkerConfig(cfg *config.Config) (*shrinker.Config, error) {
	scfg := shrinker.DefaultConfig()
	scfg.Pool = parallel.DefaultPoolConfig().WithWorkers(cfg.Shrinker.MaxWorkers)
	scfg.HierarchyCacheSize = cfg.Shrinker.HierarchyCacheSize

	if cfg.Shrinker.SkipSDKPackages {
		scfg.SDK.AddPrefixes(cfg.Shrinker.SDKPrefixes)
	} else {
		scfg.SDK = nil
	}

	if cfg.Shrinker.BytecodeVersion != "" {
		v, err := classfile.ParseVersion(cfg.Shrinker.BytecodeVersion)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "invalid bytecode version", err)
		}
		scfg.BytecodeVersion = &v
	}
	return scfg, nil
}

func stateConfig(cfg *config.Config) state.Config {
	return state.Config{
		Backend:     state.Backend(cfg.State.Backend),
		Path:        cfg.State.Path,
		DSN:         cfg.State.DSN,
		Compression: cfg.State.Compression,
		MaxConns:    cfg.State.MaxConns,
		Tracing:     cfg.Telemetry.Enabled,
	}
}

func printTraces(out io.Writer, res *shrinker.Result) {
	if len(res.Traces) == 0 {
		fmt.Fprintln(out, "no why_are_you_keeping target is kept")
		return
	}
	nodes := make([]graph.NodeID, 0, len(res.Traces))
	for id := range res.Traces {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return res.Graph.FullName(nodes[i]) < res.Graph.FullName(nodes[j])
	})
	for _, id := range nodes {
		fmt.Fprintln(out, res.Traces[id].Format(res.Graph))
	}
}
