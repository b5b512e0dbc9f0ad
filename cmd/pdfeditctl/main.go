package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"pdfedit/internal/blob"
	"pdfedit/internal/config"
	"pdfedit/internal/domain"
	"pdfedit/internal/editor"
	"pdfedit/internal/logging"
	"pdfedit/internal/planner"
	"pdfedit/internal/repository"
	"pdfedit/internal/service"
	"pdfedit/internal/textextract"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env")
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pdfeditctl",
		Usage: "Operate a pdfedit deployment and edit PDFs locally",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the config file",
				Value:   ".app.env",
				EnvVars: []string{"PDFEDIT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply or roll back database migrations",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: migrateCmd(true),
					},
					{
						Name:   "down",
						Usage:  "Roll back the most recent migration",
						Action: migrateCmd(false),
					},
				},
			},
			{
				Name:  "check",
				Usage: "Check connectivity of a backing service",
				Subcommands: []*cli.Command{
					{
						Name:   "db",
						Usage:  "Create and delete a test document",
						Action: checkDBCmd,
					},
					{
						Name:   "storage",
						Usage:  "Upload and delete a test object",
						Action: checkStorageCmd,
					},
				},
			},
			{
				Name:  "apply",
				Usage: "Apply an action list to a local PDF",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "input PDF", Required: true},
					&cli.StringFlag{Name: "out", Usage: "output PDF", Required: true},
					&cli.StringFlag{Name: "actions", Usage: "action list as JSON, or @file", Required: true},
				},
				Action: applyCmd,
			},
			{
				Name:  "plan",
				Usage: "Ask the model for an action list without applying it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "instruction", Aliases: []string{"m"}, Usage: "edit request", Required: true},
					&cli.StringFlag{Name: "in", Usage: "PDF to use as context"},
				},
				Action: planCmd,
			},
			{
				Name:  "text",
				Usage: "Print the text of every page of a PDF",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "input PDF", Required: true},
				},
				Action: textCmd,
			},
		},
	}
}

func newLogger(c *cli.Context) *logrus.Logger {
	return logging.New(c.String("log-level"))
}

func migrateCmd(up bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}

		m := repository.NewMigrator(cfg.Database.MigrationsPath, cfg.Database.GetURL(), newLogger(c))

		var res repository.MigrationResult
		if up {
			res, err = m.Up()
		} else {
			res, err = m.Down()
		}
		if err != nil {
			return err
		}

		return printJSON(res)
	}
}

func checkDBCmd(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger := newLogger(c)

	db, err := repository.Connect(cfg.Database, 1, time.Second, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	diag := service.NewDiagnosticsService(repository.NewDocumentRepository(db), nil, nil, logger)
	res, err := diag.TestDB(c.Context)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func checkStorageCmd(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger := newLogger(c)

	store, err := blob.Open(c.Context, cfg.Storage, logger)
	if err != nil {
		return err
	}

	diag := service.NewDiagnosticsService(nil, store, nil, logger)
	res, err := diag.TestBlob(c.Context)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func applyCmd(c *cli.Context) error {
	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return err
	}

	list, err := readActions(c.String("actions"))
	if err != nil {
		return err
	}
	if err := list.Validate(); err != nil {
		return err
	}

	out, report, err := editor.New(newLogger(c)).Apply(data, list.Actions)
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.String("out"), out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", c.String("out"), err)
	}

	return printJSON(report)
}

// readActions accepts either a JSON document or @path to one. A bare array
// is treated as the actions field.
func readActions(arg string) (domain.ActionList, error) {
	raw := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return domain.ActionList{}, err
		}
		raw = b
	}

	var list domain.ActionList
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &list.Actions); err != nil {
			return list, fmt.Errorf("parse actions: %w", err)
		}
		return list, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
		return list, fmt.Errorf("parse actions: %w", err)
	}
	return list, nil
}

func planCmd(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger := newLogger(c)

	var cache planner.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := planner.NewRedisCache(c.Context, cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Plan cache disabled")
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}

	p, err := planner.New(cfg.LLM, cache, logger)
	if err != nil {
		return err
	}

	req := planner.PlanRequest{Instruction: c.String("instruction")}
	if in := c.String("in"); in != "" {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		if n, err := editor.New(logger).PageCount(data); err == nil {
			req.PageCount = n
		}
		if pages, err := textextract.Extract(data); err == nil {
			req.Pages = pages
		} else {
			logger.WithError(err).Warn("No text context for plan")
		}
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.LLM.Timeout+10*time.Second)
	defer cancel()

	plan, err := p.Plan(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(plan)
}

func textCmd(c *cli.Context) error {
	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return err
	}
	pages, err := textextract.Extract(data)
	if err != nil {
		return err
	}
	return printJSON(pages)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
