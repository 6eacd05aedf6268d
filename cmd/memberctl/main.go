/*
 * Copyright 2025 tomoncle.
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

// Command memberctl migrates a member database, optionally seeds it and ages
// members in bulk, then prints one page of members as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tomoncle/memberquery"
	"github.com/tomoncle/memberquery/database"
	"github.com/tomoncle/memberquery/model"
	"github.com/tomoncle/memberquery/types"
	"github.com/tomoncle/memberquery/utils"
)

type options struct {
	config  string
	envFile string
	page    int
	size    int
	sort    string
	agePlus int
	seed    bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	flags := flag.NewFlagSet("memberctl", flag.ContinueOnError)
	flags.StringVar(&opts.config, "config", "", "path to the database YAML config (default: local SQLite file)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.IntVar(&opts.page, "page", 0, "zero-based page number")
	flags.IntVar(&opts.size, "size", 5, "page size")
	flags.StringVar(&opts.sort, "sort", "username,asc", "sort keys as field,dir;field,dir")
	flags.IntVar(&opts.agePlus, "age-plus", -1, "add one year to members at least this old (negative disables)")
	flags.BoolVar(&opts.seed, "seed", false, "insert user1..user100 when the member table is empty")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func loadConfig(opts *options) (*database.Config, error) {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", opts.envFile, err)
	}
	if opts.config == "" {
		return &database.Config{
			ConnectionConfig:  database.ConnectionConfig{Type: database.TypeSQLite, DBName: "memberctl"},
			DataMigrateConfig: database.DataMigrateConfig{EnableMigrateOnStartup: true},
		}, nil
	}
	cfg, err := database.LoadConfig(opts.config)
	if err != nil {
		return nil, err
	}
	cfg.DataMigrateConfig.EnableMigrateOnStartup = true
	return cfg, nil
}

// seed inserts two teams and user1..user100 aged 1..100, alternating teams.
func seed(ctx context.Context, svc *memberquery.MemberService) error {
	existing, err := svc.Search(ctx, nil, types.NewPageRequest(0, 1))
	if err != nil {
		return err
	}
	if existing.TotalElements > 0 {
		return nil
	}

	teams := make([]*model.Team, 0, 2)
	for _, name := range []string{"teamA", "teamB"} {
		team, err := svc.CreateTeam(ctx, name)
		if err != nil {
			return err
		}
		teams = append(teams, team)
	}
	for i := 1; i <= 100; i++ {
		if _, err := svc.Join(ctx, fmt.Sprintf("user%d", i), i, teams[i%2]); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	sort, err := types.ParseSort(opts.sort)
	if err != nil {
		return err
	}
	req := types.NewPageRequest(opts.page, opts.size, sort...)
	if err := req.Validate(); err != nil {
		return err
	}

	factory, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer factory.Close()

	svc, err := memberquery.NewMemberService(factory.GetDB())
	if err != nil {
		return err
	}
	ctx = memberquery.ContextWithAuditor(ctx, "memberctl")

	if opts.seed {
		if err := seed(ctx, svc); err != nil {
			return err
		}
	}
	if opts.agePlus >= 0 {
		if _, err := svc.BulkAgePlus(ctx, opts.agePlus); err != nil {
			return err
		}
	}

	page, err := svc.List(ctx, &req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}

func main() {
	logger := utils.NewLogger("MEMBERCTL")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.WithError(err).Error("memberctl failed")
		stop()
		os.Exit(1)
	}
}
