package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"genre-classifier/config"
	"genre-classifier/utils"
	"genre-classifier/wav"

	"github.com/mdobak/go-xerrors"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' subcommand")
		os.Exit(1)
	}
	config.LoadDotEnv()

	cfg := config.Load()
	if err := utils.CreateFolder(cfg.TempDir); err != nil {
		logger := utils.GetLogger()
		err := xerrors.New(err)
		logger.ErrorContext(context.Background(), "Failed create tmp dir.", slog.Any("error", err))
	}

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", cfg.Protocol, "Protocol to use (http or https)")
		port := serveCmd.String("p", cfg.Port, "Port to use")
		model := serveCmd.String("model", cfg.ModelPath, "Path to the trained model artifact")
		serveCmd.Parse(os.Args[2:])
		cfg.Protocol = *protocol
		cfg.Port = *port
		cfg.ModelPath = *model

		if err := wav.CheckFFmpegAvailable(cfg.FFmpegPath); err != nil {
			log.Printf("WARNING: %v\n", err)
			log.Println("The server will start but non-WAV, non-MP3 audio will fail until FFmpeg is installed.")
		} else {
			log.Println("FFmpeg is available")
		}
		serve(cfg)
	default:
		fmt.Println("Expected 'serve' subcommand")
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
