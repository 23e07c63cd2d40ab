//go:build cgo

package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/finsight/internal/embeddings"
	"github.com/spf13/cobra"
)

var (
	forceDownload bool
	onnxVersion   string
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceDownload, "force", "f", false, "Force re-download even if ONNX runtime exists")
	initCmd.Flags().StringVar(&onnxVersion, "onnx-version", embeddings.DefaultONNXRuntimeVersion, "ONNX runtime version to install")
}

// initCmd installs the ONNX runtime used by local embeddings
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Install the ONNX runtime for local embeddings",
	Long: `Download the ONNX runtime library required by the FastEmbed embedding
provider. The library is installed to:
  ~/.config/finsight/lib/

If the ONNX_PATH environment variable is set, that path takes precedence.

Examples:
  # Download the ONNX runtime
  finsight init

  # Force re-download even if already installed
  finsight init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	if !forceDownload {
		if path := embeddings.GetONNXLibraryPath(); path != "" {
			cmd.Printf("ONNX runtime already installed at: %s\n", path)
			cmd.Println("Use --force to re-download.")
			return nil
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.Printf("Downloading ONNX runtime v%s...\n", onnxVersion)
	if err := embeddings.DownloadONNXRuntime(ctx, onnxVersion); err != nil {
		return fmt.Errorf("failed to download ONNX runtime: %w", err)
	}

	path := embeddings.GetONNXLibraryPath()
	if path == "" {
		return fmt.Errorf("download completed but library not found")
	}

	cmd.Printf("Installed ONNX runtime to: %s\n", path)
	return nil
}
