package main

import (
	"fmt"
	"strings"

	cfb "github.com/asalih/go-cfb"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envPrefix = "CFB"

	configFlag   = "config"
	strictFlag   = "strict"
	maxSizeFlag  = "max-size"
	logLevelFlag = "log-level"
)

// app is the state shared by all subcommands of one invocation.
type app struct {
	fs  afero.Fs
	cfg *viper.Viper
	log *zap.Logger
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	a := &app{
		fs:  fs,
		cfg: viper.New(),
		log: zap.NewNop(),
	}

	cmd := &cobra.Command{
		Use:   "cfb",
		Short: "Inspect and build Compound File Binary containers",
		Long: `cfb lists, extracts and creates Compound File Binary containers,
the storage format of legacy Office documents, MSI packages and OLE objects.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(configFlag, "", "Path to a config file (yaml, json or toml)")
	flags.Bool(strictFlag, false, "Reject files with any structural irregularity")
	flags.Int64(maxSizeFlag, 0, "Refuse files larger than this many bytes (0 is no limit)")
	flags.String(logLevelFlag, "warn", "Log level: debug, info, warn or error")

	if err := bindFlags(a.cfg, flags); err != nil {
		panic(err)
	}

	cmd.AddCommand(
		newListCommand(a),
		newCatCommand(a),
		newUnpackCommand(a),
		newPackCommand(a),
		newVersionCommand(),
	)

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err == nil && f.Name != configFlag {
			err = v.BindPFlag(f.Name, f)
		}
	})
	return err
}

// setup reads the config file and environment, then builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.cfg.SetEnvPrefix(envPrefix)
	a.cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.cfg.AutomaticEnv()

	if path, _ := cmd.Flags().GetString(configFlag); path != "" {
		a.cfg.SetFs(a.fs)
		a.cfg.SetConfigFile(path)
		if err := a.cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	log, err := newLogger(a.cfg.GetString(logLevelFlag))
	if err != nil {
		return err
	}
	a.log = log

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", logLevelFlag, err)
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.OutputPaths = []string{"stderr"}
	c.Sampling = nil

	return c.Build()
}

// options turns the effective configuration into codec options.
func (a *app) options() []cfb.Option {
	opts := []cfb.Option{
		cfb.WithLogger(a.log),
		cfb.WithMaxFileSize(a.cfg.GetInt64(maxSizeFlag)),
	}
	if a.cfg.GetBool(strictFlag) {
		opts = append(opts, cfb.WithValidation(cfb.ValidationStrict))
	}
	return opts
}

// readFile loads a container, checking the size limit before reading.
func (a *app) readFile(path string) ([]byte, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if limit := a.cfg.GetInt64(maxSizeFlag); limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d: %w", path, info.Size(), limit, cfb.ErrorInvalidCFB)
	}
	return afero.ReadFile(a.fs, path)
}

func (a *app) open(path string) (*cfb.CompoundFile, error) {
	data, err := a.readFile(path)
	if err != nil {
		return nil, err
	}
	file, err := cfb.Open(data, a.options()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}
