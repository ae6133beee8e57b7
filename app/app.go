// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package app defines the logic for the "gorope" command.
//
// gorope decodes replay files and writes each as a JSON document to stdout:
//
//	gorope [flags] FILE...
//
// By default only the header is decoded. With --netstream, each replay's
// frames are decoded too. With --archive, decoded replays are also written
// to archives that can be read back with package archive.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/danjacques/gorope/netcache"
	"github.com/danjacques/gorope/netstream"
	"github.com/danjacques/gorope/replay"
	"github.com/danjacques/gorope/replay/archive"
	"github.com/danjacques/gorope/support/logging"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Main is the main entry point.
func Main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := Run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gorope: %s\n", err)
		os.Exit(1)
	}
}

// Run runs the command with args, writing documents to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	var cfg Config
	fs := pflag.NewFlagSet("gorope", pflag.ContinueOnError)
	cfg.AddFlags(fs)
	if err := cfg.Parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no replay files specified")
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger, err := zc.Build()
	if err != nil {
		return errors.Wrap(err, "building logger")
	}
	defer func() {
		_ = logger.Sync()
	}()

	a := app{
		Config: &cfg,
		log:    logger.Sugar(),
	}
	return a.run(ctx, fs.Args(), out)
}

type app struct {
	*Config

	log     logging.L
	classes *netcache.ClassTable
}

func (a *app) run(ctx context.Context, files []string, out io.Writer) error {
	reg := prometheus.NewRegistry()
	netstream.RegisterMonitoring(reg)
	replay.RegisterMonitoring(reg)
	archive.RegisterMonitoring(reg)

	if a.ClassMap != "" {
		var err error
		if a.classes, err = netcache.LoadClassTable(a.ClassMap); err != nil {
			return err
		}
		a.log.Infof("Loaded %d class mappings from %q.", a.classes.Len(), a.ClassMap)
	}
	if a.ArchiveDir != "" {
		if err := os.MkdirAll(a.ArchiveDir, 0755); err != nil {
			return errors.Wrap(err, "creating archive directory")
		}
	}

	// Documents are rendered concurrently, then written in argument order.
	docs := make([][]byte, len(files))
	var g errgroup.Group
	g.SetLimit(a.Jobs)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var err error
			docs[i], err = a.processFile(path)
			if err != nil {
				a.log.Errorf("Failed to process %q: %s", path, err)
				return errors.Wrapf(err, "processing %q", path)
			}
			return nil
		})
	}
	runErr := g.Wait()

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if _, err := out.Write(append(doc, '\n')); err != nil {
			return errors.Wrap(err, "writing output")
		}
	}

	if a.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.MetricsFile, reg); err != nil {
			a.log.Warnf("Could not write metrics to %q: %s", a.MetricsFile, err)
		}
	}
	return runErr
}

// fileLogger tags base's output with the name of the replay at path.
func fileLogger(base logging.L, path string) logging.L {
	return logging.WithPrefix(base, filepath.Base(path))
}

// processFile decodes the replay at path and returns its JSON document.
//
// If the netstream fails to decode, the document holds the frames decoded
// before the failure, and the failure is returned alongside it.
func (a *app) processFile(path string) ([]byte, error) {
	log := fileLogger(a.log, path)

	rp, err := replay.Load(path, replay.Options{
		Strict:  a.Strict,
		Classes: a.classes,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	var decodeErr error
	if a.Netstream {
		if decodeErr = rp.ParseNetstream(); decodeErr != nil {
			log.Warnf("Netstream decode stopped after %d frames: %s", len(rp.Frames), decodeErr)
		} else {
			log.Debugf("Decoded %d frames.", len(rp.Frames))
		}
	}

	if a.ArchiveDir != "" {
		ac := archive.Config{
			Compression: a.Compression.Value(),
			TempDir:     a.ArchiveDir,
			Logger:      log,
		}
		dest := filepath.Join(a.ArchiveDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if err := ac.WriteReplay(dest, rp); err != nil {
			return nil, errors.Wrap(err, "writing archive")
		}
		log.Infof("Archived %d frames to %q.", len(rp.Frames), dest)
	}

	var doc []byte
	if a.Pretty {
		doc, err = json.MarshalIndent(rp, "", "  ")
	} else {
		doc, err = json.Marshal(rp)
	}
	if err != nil {
		return nil, errors.Wrap(err, "encoding JSON")
	}
	return doc, decodeErr
}
