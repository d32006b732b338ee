package main

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gurre/blendload"
)

const (
	verboseFlag   = "verbose"
	quietFlag     = "quiet"
	prettyFlag    = "pretty"
	regionFlag    = "region"
	profileFlag   = "profile"
	chunkSizeFlag = "chunk-size"
	partSizeFlag  = "part-size"
	configFlag    = "config"
	envPrefix     = "BLENDLOAD"
)

// s3API is what the CLI needs from S3 to read sources and write outputs.
type s3API interface {
	blendload.S3Client
	blendload.S3Uploader
}

// app carries the settings shared by every subcommand.
type app struct {
	v *viper.Viper
	// client overrides the S3 client built from the AWS config.
	client s3API
}

func newRootCmd() *cobra.Command {
	return newApp().command()
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{v: v}
}

// command builds the root command and binds its persistent flags to a's
// settings.
func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "blendload",
		Short: "Inspect Blender files stored raw, gzip- or zstd-compressed, locally or on S3",
		Long: `blendload detects whether a .blend file is stored raw or inside a gzip or
Zstandard container by looking at its leading bytes, decompresses it in memory
and reads its block structure.

Sources are local paths or s3://bucket/key URIs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolP(verboseFlag, "v", false, "verbose logging (not compatible with --quiet)")
	flags.BoolP(quietFlag, "q", false, "only log warnings and errors")
	flags.Bool(prettyFlag, false, "log in text format instead of JSON")
	flags.String(regionFlag, "", "AWS region for s3:// sources (default from AWS config)")
	flags.String(profileFlag, "", "AWS profile for s3:// sources (default profile if empty)")
	flags.String(chunkSizeFlag, "5MiB", "size of each ranged GET for s3:// sources")
	flags.String(partSizeFlag, "5MiB", "multipart upload part size for s3:// outputs (at least 5MiB)")
	flags.String(configFlag, "", "optional config file (yaml, json or toml)")
	_ = a.v.BindPFlags(flags)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newPrintCmd(a),
		newSniffCmd(a),
		newDecompressCmd(a),
		newPackCmd(a),
	)
	return root
}

func (a *app) configure() error {
	if path := a.v.GetString(configFlag); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	verbose, quiet := a.v.GetBool(verboseFlag), a.v.GetBool(quietFlag)
	if verbose && quiet {
		return usageError{errors.New("logging can't both be verbose and quiet")}
	}
	switch {
	case verbose:
		log.SetLevel(log.DebugLevel)
	case quiet:
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	if a.v.GetBool(prettyFlag) {
		log.SetFormatter(&log.TextFormatter{})
	}
	return nil
}

func (a *app) chunkSize() (int64, error) {
	return a.size(chunkSizeFlag)
}

func (a *app) partSize() (int64, error) {
	return a.size(partSizeFlag)
}

func (a *app) size(flag string) (int64, error) {
	raw := a.v.GetString(flag)
	size, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, usageError{errors.Wrapf(err, "invalid --%s %q", flag, raw)}
	}
	return int64(size), nil
}

// s3Client returns the S3 client for s3:// locations. The AWS configuration
// is loaded on first use.
func (a *app) s3Client(ctx context.Context) (s3API, error) {
	if a.client != nil {
		return a.client, nil
	}

	var opts []func(*config.LoadOptions) error
	if profile := a.v.GetString(profileFlag); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region := a.v.GetString(regionFlag); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	a.client = s3.NewFromConfig(cfg)
	return a.client, nil
}

// loader returns a Loader able to read src.
func (a *app) loader(ctx context.Context, src blendload.Source) (blendload.Loader, error) {
	if !src.IsS3() {
		return blendload.Loader{}, nil
	}
	chunkSize, err := a.chunkSize()
	if err != nil {
		return blendload.Loader{}, err
	}
	client, err := a.s3Client(ctx)
	if err != nil {
		return blendload.Loader{}, err
	}
	return blendload.Loader{S3: client, ChunkSize: chunkSize}, nil
}

// saver returns a Saver able to write dst.
func (a *app) saver(ctx context.Context, dst blendload.Source) (blendload.Saver, error) {
	if !dst.IsS3() {
		return blendload.Saver{}, nil
	}
	partSize, err := a.partSize()
	if err != nil {
		return blendload.Saver{}, err
	}
	if partSize < blendload.MinPartSize {
		return blendload.Saver{}, usageError{errors.Errorf("--%s must be at least 5MiB", partSizeFlag)}
	}
	client, err := a.s3Client(ctx)
	if err != nil {
		return blendload.Saver{}, err
	}
	return blendload.Saver{S3: client, PartSize: partSize}, nil
}

// save packs a native payload into format and writes it to a location given
// on the command line.
func (a *app) save(ctx context.Context, location string, payload []byte, format blendload.Format) (int64, error) {
	dst, err := blendload.ParseSource(location)
	if err != nil {
		return 0, usageError{err}
	}
	s, err := a.saver(ctx, dst)
	if err != nil {
		return 0, err
	}

	n, err := s.Save(ctx, dst, payload, format)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"destination": dst.String(), "size": humanize.IBytes(uint64(n))}).Debug("written")
	return n, nil
}

// load reads a source given on the command line.
func (a *app) load(ctx context.Context, location string) ([]byte, error) {
	src, err := blendload.ParseSource(location)
	if err != nil {
		return nil, usageError{err}
	}
	l, err := a.loader(ctx, src)
	if err != nil {
		return nil, err
	}

	data, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"source": src.String(), "size": humanize.IBytes(uint64(len(data)))}).Debug("loaded")
	return data, nil
}

// decode loads a source and returns its native payload.
func (a *app) decode(ctx context.Context, location string) ([]byte, error) {
	data, err := a.load(ctx, location)
	if err != nil {
		return nil, err
	}
	payload, format, err := blendload.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", location)
	}
	log.WithFields(log.Fields{
		"source": location,
		"format": format.String(),
		"size":   humanize.IBytes(uint64(len(payload))),
	}).Debug("decoded")
	return payload, nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func requireOutput(flags *pflag.FlagSet) (string, error) {
	out, _ := flags.GetString("output")
	if out == "" {
		return "", usageError{errors.New("--output is required")}
	}
	return out, nil
}
