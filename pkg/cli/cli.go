package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/sonicarch/pkg/cmd/check"
	"github.com/igolaizola/sonicarch/pkg/cmd/compose"
	"github.com/igolaizola/sonicarch/pkg/cmd/migrate"
	"github.com/igolaizola/sonicarch/pkg/cmd/setting"
	"github.com/igolaizola/sonicarch/pkg/cmd/web"
	"github.com/igolaizola/sonicarch/pkg/credential"
	"github.com/igolaizola/sonicarch/pkg/logger"
	"github.com/igolaizola/sonicarch/pkg/openai"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const envPrefix = "SONICARCH"

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("sonicarch", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "sonicarch [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newSettingCommand(),
			newCheckCommand(),
			newComposeCommand(),
			newWebCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "sonicarch version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix(envPrefix),
	}
}

func dbFlags(fs *flag.FlagSet, dbType, dbConn *string) {
	fs.StringVar(dbType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(dbConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
}

func logFlags(fs *flag.FlagSet, cfg *logger.Config) {
	fs.StringVar(&cfg.Level, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.JSON, "log-json", false, "log to stderr as json")
	fs.StringVar(&cfg.File, "log-file", "", "log file, rotated (optional)")
	fs.IntVar(&cfg.MaxSize, "log-max-size", 100, "max size in megabytes of the log file")
	fs.IntVar(&cfg.MaxBackups, "log-max-backups", 5, "max number of rotated log files")
	fs.IntVar(&cfg.MaxAge, "log-max-age", 30, "max age in days of rotated log files")
	fs.BoolVar(&cfg.Compress, "log-compress", false, "compress rotated log files")
}

func modelFlags(fs *flag.FlagSet, baseURL, model *string, timeout *time.Duration) {
	fs.StringVar(baseURL, "base-url", openai.DefaultBaseURL, "openai compatible api base url")
	fs.StringVar(model, "model", openai.DefaultModel, "language model")
	fs.DurationVar(timeout, "timeout", 2*time.Minute, "timeout of each model call")
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}
	dbFlags(fs, &cfg.DBType, &cfg.DBConn)
	logFlags(fs, &cfg.Log)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sonicarch %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "create or update the database schema",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}

func newSettingCommand() *ffcli.Command {
	cmd := "setting"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &setting.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	dbFlags(fs, &cfg.DBType, &cfg.DBConn)
	logFlags(fs, &cfg.Log)
	fs.StringVar(&cfg.Service, "service", credential.Provider, "model provider")
	fs.StringVar(&cfg.Account, "account", credential.Account, "account name")
	fs.StringVar(&cfg.Type, "type", "apikey", "value type")
	fs.StringVar(&cfg.Value, "value", "", "value to set")
	fs.BoolVar(&cfg.Clear, "clear", false, "clear the stored value")
	fs.BoolVar(&cfg.List, "list", false, "list the stored values of the service, masked")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sonicarch %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "store, clear or list the api key",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return setting.Run(ctx, cfg)
		},
	}
}

func newCheckCommand() *ffcli.Command {
	cmd := "check"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &check.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	dbFlags(fs, &cfg.DBType, &cfg.DBConn)
	logFlags(fs, &cfg.Log)
	modelFlags(fs, &cfg.BaseURL, &cfg.Model, &cfg.Timeout)
	fs.StringVar(&cfg.Key, "key", "", "key to check instead of the configured one")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sonicarch %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "check that the api key is valid",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return check.Run(ctx, cfg)
		},
	}
}

func newComposeCommand() *ffcli.Command {
	cmd := "compose"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &compose.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	dbFlags(fs, &cfg.DBType, &cfg.DBConn)
	logFlags(fs, &cfg.Log)
	modelFlags(fs, &cfg.BaseURL, &cfg.Model, &cfg.Timeout)

	fs.StringVar(&cfg.Input, "input", "", "arrangement file (json, yaml or csv)")
	fs.StringVar(&cfg.Output, "output", "", "output file (default stdout)")
	fs.StringVar(&cfg.Format, "format", "text", "output format (text, json)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "print the prompt instead of calling the model")
	fs.StringVar(&cfg.ModelVersion, "model-version", "", "target music model version (v4, v5)")

	fs.StringVar(&cfg.Topic, "topic", "", "song topic, used when no input file is given")
	fs.StringVar(&cfg.Mood, "mood", "", "song mood")
	fs.StringVar(&cfg.Genre, "genre", "", "song genre")
	fs.BoolVar(&cfg.Instrumental, "instrumental", false, "instrumental song")
	fs.StringVar(&cfg.CustomInstructions, "instructions", "", "custom instructions")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sonicarch %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "compile a music prompt from an arrangement",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return compose.Run(ctx, cfg)
		},
	}
}

func newWebCommand() *ffcli.Command {
	cmd := "web"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &web.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	dbFlags(fs, &cfg.DBType, &cfg.DBConn)
	logFlags(fs, &cfg.Log)
	modelFlags(fs, &cfg.BaseURL, &cfg.Model, &cfg.Timeout)

	fs.StringVar(&cfg.Addr, "addr", ":1337", "address to listen on")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", 24*time.Hour, "idle time before a session is dropped")
	fsMapVar(fs, &cfg.Credentials, "creds", nil, "credentials to use (semicolon separated) Example: user1:pass1;user2:pass2")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sonicarch %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "launch the api server",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return web.Serve(ctx, cfg)
		},
	}
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[parts[0]] = parts[1]
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
