// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.



package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/poiesic/jobstream"
	"github.com/poiesic/jobstream/config"
	"github.com/poiesic/jobstream/ingestion"
	"github.com/poiesic/jobstream/workflow"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "jobstream",
		Usage: "Extract, reconcile and track job postings and résumés",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"JOBSTREAM_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"JOBSTREAM_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides db_path)",
			},
			&cli.StringFlag{
				Name:  "documents",
				Usage: "Directory holding raw documents (overrides documents_dir)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Extract and store a job posting",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Posting file, plain text or HTML",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "profile",
						Usage: "Profile whose job stream receives the posting",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Posting URL, used when the posting names none",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title used if extraction rejects the posting",
					},
					&cli.BoolFlag{
						Name:  "html",
						Usage: "Treat the file as HTML (detected by default)",
					},
				},
			},
			{
				Name:   "parse-resume",
				Usage:  "Extract and store the résumé of a profile",
				Action: parseResumeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "profile",
						Usage:    "Profile owning the résumé",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "ref",
						Usage:    "Document ref relative to the documents directory",
						Required: true,
					},
				},
			},
			{
				Name:   "discover",
				Usage:  "Run the discovery workflow once",
				Action: workflowCommand(workflow.DiscoveryName),
			},
			{
				Name:   "check-status",
				Usage:  "Run the application status workflow once",
				Action: workflowCommand(workflow.StatusName),
			},
			{
				Name:   "serve",
				Usage:  "Run scheduled workflows until interrupted",
				Action: serveCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}
	if c.IsSet("documents") {
		cfg.DocumentsDir = c.String("documents")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withService opens the service for the duration of fn.
func withService(c *cli.Context, fn func(ctx context.Context, svc *jobstream.Service) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	svc, err := jobstream.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open jobstream: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("error closing jobstream", "err", err)
		}
	}()
	return fn(ctx, svc)
}

func ingestCommand(c *cli.Context) error {
	path := c.String("file")
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read posting: %w", err)
	}

	return withService(c, func(ctx context.Context, svc *jobstream.Service) error {
		res, err := svc.IngestJob(ctx, ingestion.RawPosting{
			Ref:       path,
			Content:   string(content),
			HTML:      c.Bool("html"),
			TitleHint: c.String("title"),
			URL:       c.String("url"),
			ProfileID: c.String("profile"),
		})
		if err != nil {
			return err
		}

		company := "none"
		if res.Company != nil {
			company = fmt.Sprint(res.Company.Id)
		}
		fmt.Fprintf(c.App.Writer, "job=%d company=%s created=%t degraded=%t title=%q\n",
			res.Job.Id, company, res.Created, res.Degraded, res.Job.Title)
		return nil
	})
}

func parseResumeCommand(c *cli.Context) error {
	return withService(c, func(ctx context.Context, svc *jobstream.Service) error {
		resume, err := svc.ParseResume(ctx, c.String("profile"), c.String("ref"))
		if err != nil {
			return err
		}
		name := ""
		if resume.Data.Name != nil {
			name = *resume.Data.Name
		}
		fmt.Fprintf(c.App.Writer, "profile=%s name=%q skills=%d\n", resume.ProfileID, name, len(resume.Data.Skills))
		return nil
	})
}

func workflowCommand(name string) cli.ActionFunc {
	return func(c *cli.Context) error {
		return withService(c, func(ctx context.Context, svc *jobstream.Service) error {
			if err := svc.Start(ctx); err != nil {
				return err
			}
			res, err := svc.RunWorkflow(ctx, name)
			if err != nil {
				return err
			}
			sum := res.Summary
			fmt.Fprintf(c.App.Writer, "workflow=%s invocation=%s processed=%d created=%d updated=%d skipped=%d failed=%d elapsed=%s\n",
				res.Workflow, res.InvocationID, sum.Processed, sum.Created, sum.Updated, sum.Skipped, sum.Failed,
				res.FinishedAt.Sub(res.StartedAt))
			if res.Err != nil {
				return fmt.Errorf("workflow %s failed (%s): %w", name, res.Kind, res.Err)
			}
			return nil
		})
	}
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	c.Context = ctx

	return withService(c, func(ctx context.Context, svc *jobstream.Service) error {
		if err := svc.Start(ctx); err != nil {
			return err
		}
		slog.Info("jobstream serving; interrupt to stop")
		<-ctx.Done()
		slog.Info("shutting down")
		return nil
	})
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
