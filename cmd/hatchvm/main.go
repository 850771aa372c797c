// Command hatchvm inspects hatch projects and exercises the scripting
// runtime outside the engine.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/hatchvm/manifest"
)

var log = commonlog.GetLogger("hatchvm.cli")

// version can be overridden at build time via -ldflags.
var version = "0.1.0-dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hatchvm",
		Short:         "Hatch scripting runtime tools",
		Long:          `hatchvm loads hatch.toml projects, decodes save snapshots and runs runtime self-checks.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupColor(cmd)
		},
	}

	root.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	root.PersistentFlags().StringP("dir", "C", ".", "directory to search for "+manifest.Filename)
	root.PersistentFlags().IntP("verbosity", "v", 0, "log verbosity, overrides [log] verbosity when set")

	root.AddCommand(newConfigCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newCheckCmd())
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// loadProject finds hatch.toml from the --dir flag upward and configures
// logging from it. Without a manifest the defaults apply, rooted at --dir.
func loadProject(cmd *cobra.Command) (*manifest.Manifest, error) {
	dir, err := cmd.Root().PersistentFlags().GetString("dir")
	if err != nil {
		return nil, err
	}
	mf, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if mf == nil {
		mf = manifest.Default()
		if mf.Dir, err = filepath.Abs(dir); err != nil {
			return nil, err
		}
	}

	verbosity := mf.Log.Verbosity
	if f := cmd.Root().PersistentFlags().Lookup("verbosity"); f != nil && f.Changed {
		verbosity, _ = cmd.Root().PersistentFlags().GetInt("verbosity")
	}
	if path := mf.LogPath(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("cannot create log directory: %w", err)
		}
		commonlog.Configure(verbosity, &path)
	} else {
		commonlog.Configure(verbosity, nil)
	}
	log.Debugf("project %s", mf.Dir)
	return mf, nil
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	okColor      = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
	kindColor    = color.New(color.FgYellow)
)
