/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs the pull request bot: a webhook server that reviews
// pull requests and generates, runs and repairs tests for them.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainguard.dev/prbot/agents/reviewagent"
	"chainguard.dev/prbot/agents/testagent"
	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/reconcilers/githubreconciler/clonemanager"
	"chainguard.dev/prbot/reconcilers/githubreconciler/collector"
	"chainguard.dev/prbot/reconcilers/githubreconciler/repo"
	"chainguard.dev/prbot/reconcilers/reviewreconciler"
	"chainguard.dev/prbot/reconcilers/testreconciler"
	"chainguard.dev/prbot/reconcilers/testreconciler/archive"
	"chainguard.dev/prbot/reconcilers/testreconciler/runner"
	"chainguard.dev/prbot/webhook"
	"chainguard.dev/prbot/workqueue"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v84/github"
	"github.com/sethvargo/go-envconfig"
	"github.com/shurcooL/githubv4"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	auth, err := githubreconciler.NewAuth(ctx, githubreconciler.Credentials{
		Token:          cfg.GitHubToken,
		AppID:          cfg.GitHubAppID,
		InstallationID: cfg.GitHubInstallationID,
		PrivateKeyPath: cfg.GitHubPrivateKeyPath,
	}, nil)
	if err != nil {
		clog.FatalContextf(ctx, "configuring GitHub auth: %v", err)
	}
	httpClient := &http.Client{Transport: auth.Transport}

	repoClient, err := repo.New(github.NewClient(httpClient),
		repo.WithGraphQLClient(githubv4.NewClient(httpClient)),
		repo.WithRateLimit(cfg.GitHubRPS, max(1, int(cfg.GitHubRPS))))
	if err != nil {
		clog.FatalContextf(ctx, "creating repository client: %v", err)
	}
	col, err := collector.New(repoClient,
		collector.WithTestDir(cfg.TestDir),
		collector.WithThreshold(cfg.FileSizeThreshold))
	if err != nil {
		clog.FatalContextf(ctx, "creating collector: %v", err)
	}

	backend, err := newBackend(ctx, &cfg)
	if err != nil {
		clog.FatalContextf(ctx, "creating model backend: %v", err)
	}
	clog.InfoContextf(ctx, "Using %s model backend", backend.Name)

	tagent, err := testagent.New(backend)
	if err != nil {
		clog.FatalContextf(ctx, "creating test agent: %v", err)
	}
	ragent, err := reviewagent.New(backend)
	if err != nil {
		clog.FatalContextf(ctx, "creating review agent: %v", err)
	}

	pytest, err := runner.New(runner.WithCommand(cfg.PytestCommand), runner.WithTimeout(cfg.PytestTimeout))
	if err != nil {
		clog.FatalContextf(ctx, "creating test runner: %v", err)
	}
	clones, err := clonemanager.NewMeta(auth.TokenSource)
	if err != nil {
		clog.FatalContextf(ctx, "creating clone manager: %v", err)
	}

	var store archive.Store = archive.Noop{}
	if cfg.ArchiveBucket != "" {
		gcs, err := archive.NewGCS(ctx, cfg.ArchiveBucket, "runs")
		if err != nil {
			clog.FatalContextf(ctx, "creating run archive: %v", err)
		}
		defer gcs.Close()
		store = gcs
		clog.InfoContextf(ctx, "Archiving runs to gs://%s/runs", cfg.ArchiveBucket)
	}

	tests, err := testreconciler.New(col, tagent, repoClient,
		func(ctx context.Context, res *githubreconciler.Resource) (testreconciler.LeasedCheckout, error) {
			lease, err := clones.Lease(ctx, res)
			if err != nil {
				return nil, err
			}
			return lease, nil
		},
		pytest,
		testreconciler.WithArchive(store),
		testreconciler.WithLoopOptions(testreconciler.WithMaxRetries(cfg.MaxRetries)))
	if err != nil {
		clog.FatalContextf(ctx, "creating test reconciler: %v", err)
	}
	review, err := reviewreconciler.New(col, ragent, repoClient)
	if err != nil {
		clog.FatalContextf(ctx, "creating review reconciler: %v", err)
	}

	queue, err := workqueue.New(ctx, cfg.Workers)
	if err != nil {
		clog.FatalContextf(ctx, "creating work queue: %v", err)
	}
	hooks, err := webhook.New(queue, review, tests,
		webhook.WithSecret(cfg.WebhookSecret),
		webhook.WithLabels(cfg.ReviewLabel, cfg.TestLabel),
		webhook.WithReviewOnOpen(cfg.ReviewOnOpen))
	if err != nil {
		clog.FatalContextf(ctx, "creating webhook server: %v", err)
	}
	if cfg.WebhookSecret == "" {
		clog.WarnContextf(ctx, "WEBHOOK_SECRET is not set, webhook signatures are not validated")
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           hooks.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			clog.WarnContextf(ctx, "shutting down HTTP server: %v", err)
		}
		if err := queue.Shutdown(sctx); err != nil {
			clog.WarnContextf(ctx, "draining work queue: %v", err)
		}
	}()

	clog.InfoContextf(ctx, "Starting prbot on port %d (provider=%s, workers=%d)", cfg.Port, backend.Name, cfg.Workers)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.FatalContextf(ctx, "server failed: %v", err)
	}
	// Give the drain goroutine the chance to finish in-flight pipelines.
	sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer scancel()
	_ = queue.Shutdown(sctx)
}
