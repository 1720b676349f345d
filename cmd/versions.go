package cmd

import (
	"fmt"
	"os"

	"filehub/internal/client"
	"filehub/internal/ui"

	"github.com/spf13/cobra"
)

type VersionsFlags struct {
	Filename string
}

var versionsFlags VersionsFlags

// versionsCmd represents the versions command
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Show the version history of a file on the server",
	Long: `Show the archived revisions of a file kept by versioning-mode
uploads. Each archived name can be downloaded like any other file.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if versionsFlags.Filename == "" {
			return fmt.Errorf("filename is required")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runVersions(&versionsFlags); err != nil {
			log.Fatalf("Versions failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)

	versionsCmd.Flags().StringVarP(&versionsFlags.Filename, "file", "f", "", "Name of the file (required)")
	versionsCmd.MarkFlagRequired("file")
}

// runVersions fetches and renders a file's version history
func runVersions(flags *VersionsFlags) error {
	c := client.New(cfg.Client, nil, log)
	defer c.Close()

	versions, err := c.Versions(flags.Filename)
	if err != nil {
		return err
	}

	ui.RenderVersions(os.Stdout, flags.Filename, versions)
	return nil
}
