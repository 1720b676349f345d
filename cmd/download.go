package cmd

import (
	"fmt"

	"filehub/internal/client"
	"filehub/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type DownloadFlags struct {
	Filename string
	OutDir   string
}

var downloadFlags DownloadFlags

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a file from the server",
	Long: `Download a file from the server. This will:

1. Check for an existing partial download and resume from its length
2. Request the file (archived version names work too)
3. Stream bytes into a durable .part file with a progress bar
4. Verify the content hash and promote the .part file to its final name

An interrupted download leaves the .part file behind; running the same
download again resumes where it stopped.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateDownloadFlags(&downloadFlags)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDownload(&downloadFlags); err != nil {
			log.Fatalf("Download failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&downloadFlags.Filename, "file", "f", "", "Name of the file to download (required)")
	downloadCmd.Flags().StringVarP(&downloadFlags.OutDir, "out", "o", "", "Download directory (overrides config)")

	downloadCmd.MarkFlagRequired("file")

	viper.BindPFlag("download.file", downloadCmd.Flags().Lookup("file"))
	viper.BindPFlag("client.download_dir", downloadCmd.Flags().Lookup("out"))
}

// validateDownloadFlags validates the download command flags
func validateDownloadFlags(flags *DownloadFlags) error {
	if flags.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	return nil
}

// runDownload creates a client session and downloads the file
func runDownload(flags *DownloadFlags) error {
	c := client.New(cfg.Client, ui.NewProgressUI(), log)
	defer c.Close()

	path, err := c.Download(flags.Filename)
	if err != nil {
		return err
	}

	fmt.Printf("File saved to %s\n", path)
	return nil
}
