package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/koustreak/xetra/internal/config"
	"github.com/koustreak/xetra/internal/connector"
	"github.com/koustreak/xetra/internal/filestore"
	"github.com/koustreak/xetra/internal/logger"
	"github.com/koustreak/xetra/internal/xetra"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to the job configuration file",
		Required: true,
		EnvVars:  []string{"XETRA_CONFIG"},
	}
}

func envFileFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "env-file",
		Usage: "Optional .env file holding the storage credentials",
		Value: ".env",
	}
}

func newApp(out io.Writer, lookup filestore.LookupFunc) *cli.App {
	return &cli.App{
		Name:      "xetra",
		Usage:     "Build daily Xetra reports from exchange trading files in object storage",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the report1 job for every date not yet processed",
				Flags: []cli.Flag{
					configFlag(),
					envFileFlag(),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Write the report and meta file to an in-memory target",
					},
				},
				Action: func(c *cli.Context) error {
					return runJob(c, out, lookup)
				},
			},
			{
				Name:  "list",
				Usage: "List source object keys under a prefix",
				Flags: []cli.Flag{
					configFlag(),
					envFileFlag(),
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Key prefix, usually a trading date such as 2021-04-01",
					},
				},
				Action: func(c *cli.Context) error {
					return listKeys(c, out, lookup)
				},
			},
		},
	}
}

func setup(c *cli.Context, out io.Writer) (*config.Config, *logger.Logger, error) {
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && c.IsSet("env-file") {
			return nil, nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		TimeFormat: "rfc3339",
		Output:     out,
	})
	logger.SetGlobal(log)
	return cfg, log, nil
}

func openStore(ctx context.Context, sc config.StoreConfig, log *logger.Logger, lookup filestore.LookupFunc) (*connector.Connector, error) {
	var creds filestore.Credentials
	if filestore.Provider(sc.Provider) != filestore.ProviderMemory {
		var err error
		if creds, err = sc.CredentialRef().Resolve(lookup); err != nil {
			return nil, err
		}
	}
	return connector.Open(ctx, sc.Filestore(creds), log)
}

func runJob(c *cli.Context, out io.Writer, lookup filestore.LookupFunc) error {
	cfg, log, err := setup(c, out)
	if err != nil {
		return err
	}

	src, err := openStore(c.Context, cfg.Source, log, lookup)
	if err != nil {
		return err
	}
	defer src.Close()

	target := cfg.Target
	if c.Bool("dry-run") {
		target.Provider = string(filestore.ProviderMemory)
		log.With().Str("bucket", target.Bucket).Logger().Warn("dry run: target is in memory")
	}
	trg, err := openStore(c.Context, target, log, lookup)
	if err != nil {
		return err
	}
	defer trg.Close()

	res, err := xetra.NewReport1(src, trg, cfg, log).Run(c.Context)
	if err != nil {
		log.ErrorWith("xetra report1 job failed", err, nil)
		return err
	}
	log.InfoWith("xetra report1 job summary", map[string]interface{}{
		"min_date": res.MinDate,
		"dates":    len(res.Dates),
		"rows":     res.Rows,
		"key":      res.Key,
		"written":  res.Written,
	})
	return nil
}

func listKeys(c *cli.Context, out io.Writer, lookup filestore.LookupFunc) error {
	cfg, log, err := setup(c, out)
	if err != nil {
		return err
	}

	src, err := openStore(c.Context, cfg.Source, log, lookup)
	if err != nil {
		return err
	}
	defer src.Close()

	keys, err := src.ListFilesInPrefix(c.Context, c.String("prefix"))
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.LookupEnv).RunContext(ctx, os.Args); err != nil {
		logger.Error(err.Error())
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
