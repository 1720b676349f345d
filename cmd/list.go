package cmd

import (
	"os"

	"filehub/internal/client"
	"filehub/internal/ui"

	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List files available on the server",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runList(); err != nil {
			log.Fatalf("List failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

// runList fetches and renders the server's file records
func runList() error {
	c := client.New(cfg.Client, nil, log)
	defer c.Close()

	records, err := c.List()
	if err != nil {
		return err
	}

	ui.RenderFileList(os.Stdout, records)
	return nil
}
