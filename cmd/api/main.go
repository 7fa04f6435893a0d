/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/adapters/github"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/adapters/jira"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/adapters/openai"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    httpapi "github.com/jamesbringetto/atlassian-bug-dashboard/internal/http"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/logger"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/repo"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()
    if err := db.EnsureSchema(ctx); err != nil {
        log.Fatal().Err(err).Msg("schema init failed")
    }

    // Adapters
    jc := jira.NewClient(cfg, log)
    llm := openai.NewClient(cfg, log)
    gh := github.NewClient(cfg, log)

    // Services
    repository := repo.NewRepository(db, log)
    svc := services.New(cfg, log, repository, jc, llm, gh)

    if !llm.Available() { log.Warn().Msg("openai key missing; triage endpoints disabled") }
    if !gh.Available() { log.Warn().Msg("github token missing; commit sync disabled") }

    // HTTP server (Gin)
    router := httpapi.NewRouter(cfg, log, svc)

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()
    log.Info().Str("addr", cfg.HTTPAddr).Str("project", cfg.JiraProject).Msg("api up")

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
