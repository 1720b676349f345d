package cmd

import (
	"filehub/internal/server"
	"filehub/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type ServeFlags struct {
	ListenAddr string
	StorageDir string
}

var serveFlags ServeFlags

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the file server",
	Long: `Run the file server. This will:

1. Open (creating if needed) the storage namespace and version history
2. Listen for TCP connections on the configured address
3. Serve each connection with an independent session worker

Stop with Ctrl+C; in-flight transfers are cut and their artifacts removed.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServer(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.ListenAddr, "listen", "l", "", "listen address (overrides config)")
	serveCmd.Flags().StringVarP(&serveFlags.StorageDir, "storage", "s", "", "storage directory (overrides config)")

	viper.BindPFlag("server.listen_addr", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("server.storage_dir", serveCmd.Flags().Lookup("storage"))
}

// runServer creates and runs the server until interrupted
func runServer() error {
	ctx := createContext()

	store, err := storage.New(cfg.Server.StorageDir, cfg.Server.VersionDir, log)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, store, log)
	if err := srv.Listen(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Infof("Files will be stored in %s", cfg.Server.StorageDir)
	return srv.Serve()
}
