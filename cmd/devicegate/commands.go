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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gridpulse/devicegate/pkg/identity"
	"github.com/gridpulse/devicegate/pkg/models"
	"github.com/gridpulse/devicegate/pkg/whitelist"
)

func commandMigrate() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations and exit",
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context, c)
			if err != nil {
				return err
			}
			defer rt.Close()

			color.Green("Schema is up to date")

			return nil
		},
	}
}

func commandWhitelist() *cli.Command {
	return &cli.Command{
		Name:    "whitelist",
		Aliases: []string{"wl"},
		Usage:   "Manage the authorized device whitelist",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Authorize a MAC address (reactivates a deactivated entry)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mac", Usage: "Device MAC address", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Device name", Required: true},
					&cli.StringFlag{Name: "user", Usage: "Owning user", Required: true},
					&cli.StringFlag{Name: "notes", Usage: "Free-form notes"},
				},
				Action: func(c *cli.Context) error {
					rt, err := setup(c.Context, c)
					if err != nil {
						return err
					}
					defer rt.Close()

					registry := whitelist.NewRegistry(rt.storage, rt.logger)

					if err := registry.Add(c.Context, c.String("mac"),
						c.String("name"), c.String("user"), c.String("notes")); err != nil {
						return err
					}

					color.Green("Authorized %s", c.String("mac"))

					return nil
				},
			},
			{
				Name:  "remove",
				Usage: "Deactivate a MAC address (registration is kept)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mac", Usage: "Device MAC address", Required: true},
				},
				Action: func(c *cli.Context) error {
					rt, err := setup(c.Context, c)
					if err != nil {
						return err
					}
					defer rt.Close()

					registry := whitelist.NewRegistry(rt.storage, rt.logger)

					found, err := registry.Deactivate(c.Context, c.String("mac"))
					if err != nil {
						return err
					}

					if !found {
						color.Yellow("No whitelist entry for %s", c.String("mac"))
						return nil
					}

					color.Green("Deactivated %s", c.String("mac"))

					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List whitelist entries",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Include deactivated entries"},
				},
				Action: func(c *cli.Context) error {
					rt, err := setup(c.Context, c)
					if err != nil {
						return err
					}
					defer rt.Close()

					registry := whitelist.NewRegistry(rt.storage, rt.logger)

					devices, err := registry.List(c.Context, !c.Bool("all"))
					if err != nil {
						return err
					}

					for _, device := range devices {
						line := fmt.Sprintf("%s  %-20s %-15s active=%v",
							device.MACAddress, device.DeviceName, device.UserName, device.IsActive)

						if device.IsActive {
							color.Green(line)
						} else {
							color.Yellow(line)
						}
					}

					color.White("%d device(s)", len(devices))

					return nil
				},
			},
		},
	}
}

func commandVerify() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Evaluate one report JSON through the identity resolver",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Report JSON `FILE` ('-' for stdin)",
				Value:   "-",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context, c)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := readReport(c.String("input"))
			if err != nil {
				return err
			}

			registry := whitelist.NewRegistry(rt.storage, rt.logger)
			resolver := identity.NewResolver(registry, rt.storage, rt.cfg.Identity, rt.logger)

			decision := resolver.Resolve(c.Context, report)

			payload, err := json.MarshalIndent(decision, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(payload))

			if decision.Outcome == identity.Reject {
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}

func commandAudit() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Sweep stored fingerprints for suspicious or orphaned entries",
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context, c)
			if err != nil {
				return err
			}
			defer rt.Close()

			registry := whitelist.NewRegistry(rt.storage, rt.logger)
			auditor := identity.NewAuditor(rt.storage, registry, rt.logger)

			findings, err := auditor.Run(c.Context)
			if err != nil {
				return err
			}

			if len(findings) == 0 {
				color.Green("No findings")
				return nil
			}

			for _, finding := range findings {
				color.Red("%s  risk=%.2f  %s", finding.MACAddress, finding.RiskScore, finding.Issue)
			}

			return cli.Exit(fmt.Sprintf("%d finding(s)", len(findings)), 1)
		},
	}
}

func readReport(path string) (*models.Report, error) {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	report := &models.Report{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("failed to parse report JSON: %w", err)
	}

	return report, nil
}
