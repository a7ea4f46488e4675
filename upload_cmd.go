package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/haukigw/resumeup/internal/auth"
	"github.com/haukigw/resumeup/internal/config"
	"github.com/haukigw/resumeup/internal/history"
	"github.com/haukigw/resumeup/internal/upload"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <local-path> <remote-path>",
		Short: "Upload a file using the resumable chunked upload protocol",
		Args:  cobra.ExactArgs(2),
		RunE:  runUpload,
	}

	cmd.Flags().String("content-type", "application/octet-stream", "value of X-Upload-Content-Type")
	cmd.Flags().Bool("no-history", false, "don't record the outcome in the history ledger")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	localPath, remotePath := args[0], args[1]

	f, fi, err := openSourceFile(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType, _ := cmd.Flags().GetString("content-type")

	ts, err := auth.NewTokenSource(&cc.Cfg.Auth)
	if err != nil {
		return fmt.Errorf("resolving auth token: %w", err)
	}

	// oauth2.Transport wraps transferHTTPClient's RoundTripper to inject the
	// Authorization: Bearer header on every outgoing request — authentication
	// is an HTTP-client concern, kept out of the upload session itself.
	authedHTTP := transferHTTPClient()
	authedHTTP.Transport = &oauth2.Transport{Source: ts, Base: authedHTTP.Transport}

	tc := newTransportClient(cc.Logger)
	tc.SetHTTPClient(authedHTTP)

	bar := newUploadProgressBar(fi.Size(), filepath.Base(localPath))

	sess, err := upload.New(tc, cc.Cfg.Upload.BaseURI, remotePath, cc.Cfg.Upload.Method, f, contentType,
		upload.WithTotalLength(fi.Size()),
		upload.WithChunkSize(cc.Cfg.ChunkSizeBytes()),
		upload.WithLogger(cc.Logger),
		upload.OnProgress(func(p upload.Progress) {
			renderProgress(bar, p)
		}),
	)
	if err != nil {
		return fmt.Errorf("starting upload session: %w", err)
	}

	startedAt := time.Now().UTC()

	final, uploadErr := sess.Upload(ctx)

	closeProgressBar(bar)

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if !noHistory {
		recordUploadOutcome(ctx, cc, localPath, remotePath, startedAt, final)
	}

	if uploadErr != nil {
		return fmt.Errorf("upload failed: %w", uploadErr)
	}

	fmt.Fprintf(os.Stdout, "Uploaded %s -> %s (%d bytes)\n", localPath, remotePath, final.BytesSent)

	return nil
}

func openSourceFile(localPath string) (*os.File, os.FileInfo, error) {
	fi, err := os.Stat(localPath)
	if err != nil {
		return nil, nil, fmt.Errorf("stating local file: %w", err)
	}

	if fi.IsDir() {
		return nil, nil, fmt.Errorf("%q is a directory, not a file", localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening local file: %w", err)
	}

	return f, fi, nil
}

// newUploadProgressBar returns nil when stderr is not a terminal — callers
// must check for nil before calling bar methods (renderProgress does).
func newUploadProgressBar(total int64, description string) *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func renderProgress(bar *progressbar.ProgressBar, p upload.Progress) {
	if bar == nil {
		return
	}

	switch p.Status {
	case upload.Uploading, upload.Completed:
		_ = bar.Set64(p.BytesSent)
	case upload.Failed:
		_ = bar.Clear()
	}
}

func closeProgressBar(bar *progressbar.ProgressBar) {
	if bar == nil {
		return
	}

	_ = bar.Finish()
}

func recordUploadOutcome(ctx context.Context, cc *CLIContext, localPath, remotePath string, startedAt time.Time, final upload.Progress) {
	store, err := history.Open(config.DefaultHistoryDBPath(), cc.Logger)
	if err != nil {
		cc.Logger.Warn("could not open history store, skipping record", "error", err)
		return
	}
	defer store.Close()

	if _, err := store.RecordOutcome(ctx, localPath, remotePath, startedAt, final); err != nil {
		cc.Logger.Warn("could not record upload outcome", "error", err)
	}
}
