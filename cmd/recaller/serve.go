package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siherrmann/recaller/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	r, err := openRecaller()
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.UseDefaultPipeline(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: bundled models unavailable (%v), extraction and embeddings disabled\n", err)
	} else {
		fmt.Fprintln(os.Stderr, "  pipeline: chunker, all-MiniLM-L6-v2, distilbert NER")
	}

	addr := serveAddr
	if !cmd.Flags().Changed("addr") {
		if env := os.Getenv("RECALLER_ADDR"); env != "" {
			addr = env
		}
	}

	srv := server.New(r, VersionString())
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "recaller serving on %s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
