/*
 * Copyright 2025 GridPulse, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// devicegate is the operator tool for the device identity service: schema
// migration, whitelist administration, one-shot report verification, and
// fingerprint audits.
package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gridpulse/devicegate/pkg/config"
	"github.com/gridpulse/devicegate/pkg/db"
	"github.com/gridpulse/devicegate/pkg/logger"
	"github.com/gridpulse/devicegate/pkg/models"
)

const appVersion = "1.0.0"

func main() {
	app := &cli.App{
		Name:    "devicegate",
		Usage:   "Device identity and trust gate for telemetry ingestion",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "/etc/devicegate/devicegate.json",
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"DEVICEGATE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			commandMigrate(),
			commandWhitelist(),
			commandVerify(),
			commandAudit(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// runtime bundles the dependencies every command needs.
type runtime struct {
	cfg     *models.Config
	logger  logger.Logger
	storage db.Service
}

func (r *runtime) Close() {
	if r.storage != nil {
		r.storage.Close()
	}
}

func setup(ctx context.Context, c *cli.Context) (*runtime, error) {
	log, err := logger.New(&logger.Config{Level: c.String("log-level")})
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{}

	loader := config.NewConfig(log)
	if err := loader.LoadAndValidate(ctx, c.String("config"), cfg); err != nil {
		return nil, err
	}

	if cfg.Logging != nil {
		log, err = logger.New(&logger.Config{
			Level:      cfg.Logging.Level,
			Debug:      cfg.Logging.Debug,
			Output:     cfg.Logging.Output,
			TimeFormat: cfg.Logging.TimeFormat,
		})
		if err != nil {
			return nil, err
		}
	}

	storage, err := db.New(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: cfg, logger: log, storage: storage}, nil
}
