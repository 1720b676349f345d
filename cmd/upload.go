package cmd

import (
	"fmt"

	"filehub/internal/client"
	"filehub/internal/protocol"
	"filehub/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type UploadFlags struct {
	FilePath string
	Mode     string
}

var uploadFlags UploadFlags

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a file to the server",
	Long: `Upload a file to the server. This will:

1. Compute the file's SHA-256 hash
2. Negotiate the upload, applying the chosen duplicate handling mode
3. Stream the file in fixed-size chunks with a progress bar
4. Wait for the server's integrity verification

Use --mode to choose what happens when the name already exists:
overwrite (default), rename (stores under name_vN) or versioning
(archives the current file before replacing it).`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateUploadFlags(&uploadFlags)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runUpload(&uploadFlags); err != nil {
			log.Fatalf("Upload failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVarP(&uploadFlags.FilePath, "file", "f", "", "Path to file to upload (required)")
	uploadCmd.Flags().StringVarP(&uploadFlags.Mode, "mode", "m", string(protocol.ModeOverwrite), "Duplicate handling mode: overwrite, rename or versioning")

	uploadCmd.MarkFlagRequired("file")

	viper.BindPFlag("upload.file", uploadCmd.Flags().Lookup("file"))
	viper.BindPFlag("upload.mode", uploadCmd.Flags().Lookup("mode"))
}

// validateUploadFlags validates the upload command flags
func validateUploadFlags(flags *UploadFlags) error {
	if flags.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	if !protocol.HandlingMode(flags.Mode).Valid() {
		return fmt.Errorf("unknown handling mode %q (want overwrite, rename or versioning)", flags.Mode)
	}
	return nil
}

// runUpload creates a client session and uploads the file
func runUpload(flags *UploadFlags) error {
	c := client.New(cfg.Client, ui.NewProgressUI(), log)
	defer c.Close()

	result, err := c.Upload(flags.FilePath, protocol.HandlingMode(flags.Mode))
	if err != nil {
		return err
	}

	fmt.Printf("File %s uploaded successfully (hash %s)\n", result.Filename, result.Hash)
	return nil
}
