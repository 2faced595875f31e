package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"time"

	"github.com/gnituy18/txbind/internal/render"
	"github.com/gnituy18/txbind/internal/server"
	"go.uber.org/zap"
)

var dir string
var addr string
var renderPath string
var debug bool

func main() {
	flag.StringVar(&dir, "dir", ".", "site directory holding index.html and lib/client")
	flag.StringVar(&addr, "addr", ":3000", "listen address")
	flag.StringVar(&renderPath, "render", "", "render this file to stdout and exit")
	flag.BoolVar(&debug, "debug", false, "development logging")
	flag.Parse()
	dir = path.Clean(dir)

	log, err := newLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	renderer := render.New(render.WithLogger(log))

	if renderPath != "" {
		if err := renderFile(renderer, renderPath); err != nil {
			log.Fatal("render", zap.String("file", renderPath), zap.Error(err))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e := server.New(dir, renderer, log)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("dir", dir))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func renderFile(r *render.Renderer, name string) error {
	src, err := os.ReadFile(name)
	if err != nil {
		return err
	}

	out, err := r.Render(string(src))
	if err != nil {
		return err
	}

	_, err = os.Stdout.WriteString(out)
	return err
}
