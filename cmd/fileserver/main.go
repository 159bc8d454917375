package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Patel-Priyank-1602/File-Transfer/internal/config"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/server"
	"github.com/Patel-Priyank-1602/File-Transfer/internal/share"
)

var (
	flagPort      int
	flagDir       string
	flagAdminUser string
	flagAdminPass string
)

func main() {
	root := &cobra.Command{
		Use:   "fileserver",
		Short: "LAN hotspot file-sharing and chat server",
		Long: "Serves a shared-files directory over the local network: chunked " +
			"uploads, resumable range downloads, folder archives, join approval " +
			"and chat. Configuration comes from the environment; flags override it.",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.Flags().IntVar(&flagPort, "port", 0, "listen port (overrides PORT)")
	root.Flags().StringVar(&flagDir, "dir", "", "shared files directory (overrides UPLOAD_FOLDER)")
	root.Flags().StringVar(&flagAdminUser, "admin-user", "", "admin username (overrides ADMIN_USERNAME)")
	root.Flags().StringVar(&flagAdminPass, "admin-pass", "", "admin password (overrides ADMIN_PASSWORD)")

	if err := root.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	applyFlagEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("File server listening on %s (sharing %s)\n", cfg.ListenAddr, cfg.UploadDir)
		fmt.Println("Press Ctrl+C to stop the server")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	// One synchronous flush before exit: file inventory, download
	// histories and the chat transcript.
	msgs := srv.Chat().History()
	activity := make([]share.ActivityMessage, len(msgs))
	for i, m := range msgs {
		activity[i] = share.ActivityMessage{
			Username:  m.Username,
			Message:   m.Message,
			Timestamp: m.Timestamp,
		}
	}
	logName, err := srv.Store().WriteActivityLog(activity)
	if err != nil {
		log.Printf("Error writing activity log: %v", err)
	} else {
		fmt.Printf("All activity saved to: %s\n", logName)
	}

	fmt.Println("Server stopped.")
	return nil
}

// applyFlagEnv maps set flags onto the environment so FromEnv sees one
// consistent source.
func applyFlagEnv() {
	if flagPort > 0 {
		os.Setenv("PORT", strconv.Itoa(flagPort))
	}
	if flagDir != "" {
		os.Setenv("UPLOAD_FOLDER", flagDir)
	}
	if flagAdminUser != "" {
		os.Setenv("ADMIN_USERNAME", flagAdminUser)
	}
	if flagAdminPass != "" {
		os.Setenv("ADMIN_PASSWORD", flagAdminPass)
	}
}
