package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/config"
	"github.com/ebogdum/hdfscache/core"
)

var (
	rotateOldKey      string
	rotateFiles       []string
	rotateConcurrency int
)

// errNotRotated makes the process exit non-zero after the outcome is printed.
var errNotRotated = errors.New("some files were not rotated")

func addFileCommands(root *cobra.Command) {
	putCmd := &cobra.Command{
		Use:   "put <name> <file>",
		Short: "Upload a local file; fails if the name exists",
		Args:  cobra.ExactArgs(2),
		RunE:  withService(runPut),
	}

	getCmd := &cobra.Command{
		Use:   "get <name> [output]",
		Short: "Read a file through the local cache",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  withService(runGet),
	}

	rmCmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a file from the remote store; the cached copy stays",
		Args:  cobra.ExactArgs(1),
		RunE:  withService(runRm),
	}

	urlCmd := &cobra.Command{
		Use:   "url <name>",
		Short: "Print the direct remote URL of a file",
		Args:  cobra.ExactArgs(1),
		RunE:  withService(runURL),
	}

	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Re-encrypt stored files under the configured key",
		Long: `Re-encrypt stored files under the configured encryption key. Files are
read with --old-key (empty means they are stored unencrypted). Without
--files every file in the local cache directory is rotated. The outcome is
printed as JSON; the exit status is non-zero if any file was not rotated.`,
		Args: cobra.NoArgs,
		RunE: withService(runRotate),
	}
	rotateCmd.Flags().StringVar(&rotateOldKey, "old-key", "", "Key the files are currently encrypted with")
	rotateCmd.Flags().StringSliceVar(&rotateFiles, "files", nil, "Comma separated file names (default: all cached files)")
	rotateCmd.Flags().IntVar(&rotateConcurrency, "concurrency", 0, "Files rotated in parallel (default: rotation.concurrency)")

	root.AddCommand(putCmd, getCmd, rmCmd, urlCmd, rotateCmd)
}

type serviceCommand func(ctx context.Context, cmd *cobra.Command, svc *core.FileService, args []string) error

// withService loads configuration and builds the file service for cmd.
func withService(run serviceCommand) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigFromFile(configFilePath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger, err := initializeLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		svc, closeService, err := buildService(cfg, logger)
		if err != nil {
			return err
		}
		defer closeService()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := run(ctx, cmd, svc, args); err != nil {
			if !errors.Is(err, errNotRotated) {
				logger.Error("Command failed", zap.String("command", cmd.Name()), zap.Error(err))
			}
			return err
		}
		return nil
	}
}

func runPut(ctx context.Context, cmd *cobra.Command, svc *core.FileService, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	if _, err := svc.Create(ctx, args[0], data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d bytes)\n", args[0], len(data))
	return nil
}

func runGet(ctx context.Context, cmd *cobra.Command, svc *core.FileService, args []string) error {
	data, err := svc.Read(ctx, args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 && args[1] != "-" {
		return os.WriteFile(args[1], data, 0644)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runRm(ctx context.Context, cmd *cobra.Command, svc *core.FileService, args []string) error {
	return svc.Delete(ctx, args[0])
}

func runURL(ctx context.Context, cmd *cobra.Command, svc *core.FileService, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), svc.LocationURL(args[0]))
	return nil
}

func runRotate(ctx context.Context, cmd *cobra.Command, svc *core.FileService, args []string) error {
	outcome, err := svc.RotateEncryptionKey(ctx, core.RotateOptions{
		OldKey:      []byte(rotateOldKey),
		FileNames:   rotateFiles,
		Concurrency: rotateConcurrency,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(outcome); encErr != nil {
		return encErr
	}

	if err != nil {
		return err
	}
	if len(outcome.NotRotated) > 0 {
		return errNotRotated
	}
	return nil
}
