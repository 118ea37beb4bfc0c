// Package commands implements the artifactfs CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mlvault/artifactfs/internal/logger"
	"github.com/mlvault/artifactfs/pkg/config"
	"github.com/mlvault/artifactfs/pkg/storage"
	"github.com/mlvault/artifactfs/pkg/storage/backends"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile    string
	storageURI string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "artifactfs",
	Short: "ArtifactFS - storage layer for ML artifact registries",
	Long: `ArtifactFS moves ML artifacts between local disk and registry storage.
It speaks to local filesystems, S3, GCS and Azure Blob buckets directly, or
relays through an artifactfs registry server in client mode.

Use "artifactfs [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./artifactfs.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&storageURI, "storage-uri", "", "storage URI override (gs://, s3://, az:// or local path)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(existsCmd)
	rootCmd.AddCommand(urlCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// loadFileSystem resolves configuration, initializes logging and constructs
// the FileSystem for the selected backend.
func loadFileSystem(ctx context.Context) (*storage.FileSystem, *config.Settings, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if storageURI != "" {
		settings.StorageURI = storageURI
	}

	if err := logger.Init(logger.Config{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		Output: settings.Logging.Output,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	fs, err := backends.NewFileSystem(ctx, settings, nil)
	if err != nil {
		return nil, nil, err
	}
	return fs, settings, nil
}
