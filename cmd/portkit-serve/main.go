package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"dqx0.com/go/portkit/httpx"
	"dqx0.com/go/portkit/internal/obs"
)

func main() {
	addr := flag.String("addr", "", "listen address, empty for all interfaces")
	port := flag.Uint("port", 8080, "listen port")
	root := flag.String("root", ".", "directory to serve")
	autoDir := flag.Bool("autodir", true, "list directories without an index")
	index := flag.String("index", "index.html", "index file name, empty to disable")
	workers := flag.Int("workers", httpx.DefaultServerMaxWorkers, "concurrent connections")
	flag.Parse()

	logger := obs.StdLogger{
		L:   log.New(os.Stderr, "", log.LstdFlags),
		Min: obs.LevelFromEnv("PORTKIT_LOG_LEVEL", obs.Info),
	}
	cfg := httpx.DefaultServerConfig()
	cfg.ListenAddress = *addr
	cfg.ListenPort = uint16(*port)
	cfg.MaxWorkers = *workers

	srv := httpx.NewServer(cfg, httpx.WithServerLogger(logger))
	files := httpx.NewFileHandler("/", *root, *autoDir, *index)
	files.SetLogger(logger)
	srv.AddRequestHandler(files, "/", true)
	if err := srv.Bind(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
