package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gurre/blendload"
	"github.com/gurre/blendload/blend"
)

func newPrintCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "print <source>",
		Short: "Print the root (ID) blocks of a blend file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.decode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, err := blend.Parse(payload)
			if err != nil {
				return errors.Wrapf(err, "failed to parse %s", args[0])
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "%s\n%s\n", args[0], f.Header); err != nil {
				return err
			}
			blocks := f.Roots()
			if all {
				blocks = f.Blocks()
			}
			if err := blend.Fprint(out, blocks); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, "done")
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print every file block, not just ID blocks (objects, meshes, scenes, ...)")
	return cmd
}

func newSniffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sniff <source>...",
		Short: "Report the container format of each source",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageError{errors.New("at least one source is required")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, location := range args {
				data, err := a.load(cmd.Context(), location)
				if err != nil {
					return err
				}
				result := blendload.Classify(data).String()
				if len(data) < blendload.MinHeaderSize {
					result = "short"
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", location, result); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newDecompressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompress <source> --output <destination>",
		Short: "Write the native (uncompressed) blend payload of a source",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := requireOutput(cmd.Flags())
			if err != nil {
				return err
			}
			payload, err := a.decode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = a.save(cmd.Context(), out, payload, blendload.Native)
			return err
		},
	}
	cmd.Flags().StringP("output", "o", "", "destination path or s3://bucket/key (required)")
	return cmd
}

func newPackCmd(a *app) *cobra.Command {
	var formatName string

	cmd := &cobra.Command{
		Use:   "pack <source> --output <destination>",
		Short: "Compress a blend file into a gzip or zstd container",
		Long: `pack reads a source in any supported container, and writes its native
payload wrapped in the requested container. The destination is a local path or
an s3://bucket/key URI; S3 outputs are streamed through a multipart upload.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := blendload.ParseFormat(formatName)
			if err != nil {
				return usageError{err}
			}
			out, err := requireOutput(cmd.Flags())
			if err != nil {
				return err
			}
			payload, err := a.decode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := a.save(cmd.Context(), out, payload, format)
			if err != nil {
				return errors.Wrapf(err, "failed to pack %s", args[0])
			}
			log.WithFields(log.Fields{
				"format": format.String(),
				"before": humanize.IBytes(uint64(len(payload))),
				"after":  humanize.IBytes(uint64(n)),
			}).Info("packed")
			return nil
		},
	}
	cmd.Flags().StringVar(&formatName, "format", "zstd", "container format: gzip, zstd or native")
	cmd.Flags().StringP("output", "o", "", "destination path or s3://bucket/key (required)")
	return cmd
}
