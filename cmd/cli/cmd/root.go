// Package cmd implements the shrinker command line.
package cmd

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/class-shrinker/pkg/config"
	"github.com/class-shrinker/pkg/utils"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
}

// loadConfig loads the configuration file named by --config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

// newLogger creates the logger for cfg; --verbose forces debug output.
func (o *rootOptions) newLogger(cfg *config.Config, out io.Writer) utils.Logger {
	level := utils.ParseLogLevel(cfg.Log.Level)
	if o.verbose {
		level = utils.LevelDebug
	}
	return utils.NewDefaultLogger(level, out)
}

// NewRootCommand creates the root command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	binName := BinName()

	root := &cobra.Command{
		Use:   binName,
		Short: "Removes unreachable classes and members from JVM class files",
		Long: binName + ` computes which classes, methods and fields are reachable from the
keep rules and writes pruned copies of the reachable program classes.

A full run reads every input. An incremental run reloads the graph saved by
the previous run and reprocesses only the changed class files; when the
changes cannot be applied incrementally a full run is done instead.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default ./shrinker.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	root.AddCommand(newShrinkCommand(opts))
	root.AddCommand(newVersionCommand())

	root.Example = `  # Full run with the settings of shrinker.yaml
  ` + binName + ` shrink

  # Shrink one class directory against a platform jar
  ` + binName + ` shrink --program build/classes --platform-jar sdk/android.jar \
      --rules keep.yaml --output build/shrunk

  # Incremental run after a build changed one class
  ` + binName + ` shrink --incremental --changed com/example/Main.class

  # Explain why classes are kept
  ` + binName + ` shrink --rules keep.yaml --report build/report.json`
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		return 1
	}
	return 0
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
