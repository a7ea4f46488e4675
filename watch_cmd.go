package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/haukigw/resumeup/internal/auth"
	"github.com/haukigw/resumeup/internal/upload"
	"github.com/haukigw/resumeup/internal/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory> <remote-prefix>",
		Short: "Watch a directory and upload newly-created files as they appear",
		Args:  cobra.ExactArgs(2),
		RunE:  runWatch,
	}

	cmd.Flags().Int("concurrency", 4, "maximum number of concurrent upload sessions")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	dir, remotePrefix := args[0], args[1]

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = 1
	}

	ts, err := auth.NewTokenSource(&cc.Cfg.Auth)
	if err != nil {
		return fmt.Errorf("resolving auth token: %w", err)
	}

	w, err := watch.New(dir, cc.Logger)
	if err != nil {
		return err
	}
	defer w.Close()

	cc.Logger.Info("watching directory for new files", "dir", dir, "concurrency", concurrency)

	return watch.FanOut(ctx, w.Entries(), concurrency, func(ctx context.Context, entry watch.QueueEntry) error {
		return uploadWatchedFile(ctx, cc, ts, entry, remotePrefix)
	})
}

// uploadWatchedFile drives one independent Session per discovered file
// (SPEC_FULL.md §4.9: different sessions run concurrently on separate
// goroutines). Each call builds its own transport.Client, so concurrent
// watched sessions share only the token source.
// A failed watched upload is logged and recorded, not propagated — one bad
// file must not cancel the rest of the fan-out.
func uploadWatchedFile(ctx context.Context, cc *CLIContext, ts auth.TokenSource, entry watch.QueueEntry, remotePrefix string) error {
	f, fi, err := openSourceFile(entry.Path)
	if err != nil {
		cc.Logger.Warn("skipping watched entry", "path", entry.Path, "error", err)
		return nil
	}
	defer f.Close()

	remotePath := remotePrefix + "/" + filepath.Base(entry.Path)

	authedHTTP := transferHTTPClient()
	authedHTTP.Transport = &oauth2.Transport{Source: ts, Base: authedHTTP.Transport}

	tc := newTransportClient(cc.Logger)
	tc.SetHTTPClient(authedHTTP)

	sess, err := upload.New(tc, cc.Cfg.Upload.BaseURI, remotePath, cc.Cfg.Upload.Method, f, "application/octet-stream",
		upload.WithTotalLength(fi.Size()),
		upload.WithChunkSize(cc.Cfg.ChunkSizeBytes()),
		upload.WithLogger(cc.Logger),
	)
	if err != nil {
		return fmt.Errorf("starting upload session for %s: %w", entry.Path, err)
	}

	startedAt := time.Now().UTC()

	final, uploadErr := sess.Upload(ctx)

	recordUploadOutcome(ctx, cc, entry.Path, remotePath, startedAt, final)

	if uploadErr != nil {
		cc.Logger.Error("watched upload failed", "path", entry.Path, "error", uploadErr)
		return nil
	}

	fmt.Fprintf(os.Stdout, "Uploaded %s -> %s (%d bytes)\n", entry.Path, remotePath, final.BytesSent)

	return nil
}
