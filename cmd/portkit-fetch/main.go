package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"

	"dqx0.com/go/portkit/httpx"
	"dqx0.com/go/portkit/internal/obs"
)

func main() {
	method := flag.String("method", httpx.MethodGet, "request method")
	http11 := flag.Bool("http11", true, "send HTTP/1.1 requests")
	proxy := flag.String("proxy", "", "HTTP proxy as host:port")
	maxRedirects := flag.Int("max-redirects", httpx.DefaultMaxRedirects, "redirects to follow, 0 disables")
	stats := flag.Bool("stats", false, "print client metrics to stderr")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: portkit-fetch [flags] URL")
		os.Exit(2)
	}

	logger := obs.StdLogger{
		L:   log.New(os.Stderr, "", log.LstdFlags),
		Min: obs.LevelFromEnv("PORTKIT_LOG_LEVEL", obs.Warn),
	}
	meter := obs.NewMemoryMeter()
	cfg := httpx.DefaultClientConfig()
	cfg.MaxRedirects = *maxRedirects
	opts := []httpx.ClientOption{httpx.WithConfig(cfg), httpx.WithLogger(logger), httpx.WithMeter(meter)}
	if *proxy != "" {
		host, port, err := net.SplitHostPort(*proxy)
		if err != nil {
			log.Fatalf("proxy: %v", err)
		}
		p, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			log.Fatalf("proxy port: %v", err)
		}
		addr := httpx.ProxyAddress{Host: host, Port: uint16(p)}
		opts = append(opts, httpx.WithProxySelector(httpx.StaticProxySelector{HTTP: addr}))
	}
	client := httpx.NewClient(nil, opts...)
	defer client.Close()

	req, err := httpx.NewRequestFromString(*method, flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	if *http11 {
		req.Protocol = httpx.Protocol11
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	resp, err := client.SendRequest(ctx, req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Close()
	fmt.Fprintf(os.Stderr, "%s %d %s\n", resp.Protocol, resp.StatusCode, resp.ReasonPhrase)
	for h := range resp.Headers.All() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", h.Name, h.Value)
	}
	if body, err := resp.Entity.Body(); err == nil {
		if _, err := io.Copy(os.Stdout, body); err != nil {
			log.Fatal(err)
		}
	}

	if *stats {
		keys, values := meter.Snapshot()
		for _, k := range keys {
			fmt.Fprintf(os.Stderr, "%s %g\n", k, values[k])
		}
	}
}
