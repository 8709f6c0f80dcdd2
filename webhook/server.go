/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package webhook receives GitHub pull request events and enqueues the
// review and test pipelines for them.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chainguard.dev/prbot/reconcilers/githubreconciler"
	"chainguard.dev/prbot/workqueue"
	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v84/github"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	DefaultReviewLabel = "agent-review-pr"
	DefaultTestLabel   = "agent-generate-tests"
)

// eventsTotal counts received events. Labels: event, action, routed (review, tests, ignored, invalid)
var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "prbot",
	Subsystem: "webhook",
	Name:      "events_total",
	Help:      "Webhook events by type, action and routing",
}, []string{"event", "action", "routed"})

// Reconciler runs a pipeline for one pull request.
type Reconciler interface {
	Reconcile(ctx context.Context, res *githubreconciler.Resource) error
}

// Queue accepts background work.
type Queue interface {
	Enqueue(key string, fn workqueue.Callback) error
}

// Server routes webhook deliveries to the pipelines.
type Server struct {
	secret       []byte
	reviewLabel  string
	testLabel    string
	reviewOnOpen bool

	queue  Queue
	review Reconciler
	tests  Reconciler
}

// Option configures a Server.
type Option func(*Server) error

// WithSecret enables X-Hub-Signature-256 validation.
func WithSecret(secret string) Option {
	return func(s *Server) error {
		s.secret = []byte(secret)
		return nil
	}
}

// WithLabels sets the labels that trigger the review and test pipelines.
func WithLabels(review, tests string) Option {
	return func(s *Server) error {
		if review == "" || tests == "" {
			return errors.New("labels cannot be empty")
		}
		if review == tests {
			return fmt.Errorf("review and test labels must differ, both are %q", review)
		}
		s.reviewLabel, s.testLabel = review, tests
		return nil
	}
}

// WithReviewOnOpen reviews every newly opened pull request.
func WithReviewOnOpen(enabled bool) Option {
	return func(s *Server) error {
		s.reviewOnOpen = enabled
		return nil
	}
}

// New creates a Server.
func New(queue Queue, review, tests Reconciler, opts ...Option) (*Server, error) {
	switch {
	case queue == nil:
		return nil, errors.New("queue cannot be nil")
	case review == nil:
		return nil, errors.New("review reconciler cannot be nil")
	case tests == nil:
		return nil, errors.New("test reconciler cannot be nil")
	}
	s := &Server{
		reviewLabel: DefaultReviewLabel,
		testLabel:   DefaultTestLabel,
		queue:       queue,
		review:      review,
		tests:       tests,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handler returns the HTTP routes: POST /webhook, GET / and GET /metrics.
func (s *Server) Handler(ctx context.Context) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("prbot"), withLogger(ctx))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/webhook", s.handleWebhook)
	return router
}

// withLogger carries the process logger into request contexts.
func withLogger(ctx context.Context) gin.HandlerFunc {
	base := clog.FromContext(ctx)
	return func(c *gin.Context) {
		log := base.With("method", c.Request.Method, "path", c.FullPath())
		c.Request = c.Request.WithContext(clog.WithLogger(c.Request.Context(), log))
		c.Next()
	}
}

func (s *Server) handleWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := clog.FromContext(ctx)

	payload, err := github.ValidatePayload(c.Request, s.secret)
	if err != nil {
		log.With("error", err).Warn("Rejected webhook delivery")
		eventsTotal.WithLabelValues(github.WebHookType(c.Request), "", "invalid").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	kind := github.WebHookType(c.Request)
	event, err := github.ParseWebHook(kind, payload)
	if err != nil {
		log.With("error", err, "event", kind).Warn("Failed to parse webhook")
		eventsTotal.WithLabelValues(kind, "", "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	pr, ok := event.(*github.PullRequestEvent)
	if !ok {
		eventsTotal.WithLabelValues(kind, "", "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	action := pr.GetAction()
	pipeline, rec := s.route(pr)
	if rec == nil {
		eventsTotal.WithLabelValues(kind, action, "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	res := resourceFromEvent(pr)
	if err := res.Validate(); err != nil {
		log.With("error", err).Warn("Pull request event is missing fields")
		eventsTotal.WithLabelValues(kind, action, "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := pipeline + "/" + res.String()
	if err := s.queue.Enqueue(key, func(ctx context.Context) error {
		return rec.Reconcile(ctx, res)
	}); err != nil {
		log.With("error", err, "key", key).Error("Failed to enqueue pipeline")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}

	log.With("key", key, "action", action).Info("Enqueued pipeline")
	eventsTotal.WithLabelValues(kind, action, pipeline).Inc()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "pipeline": pipeline})
}

// route picks the pipeline for a pull request event, or nil to ignore it.
func (s *Server) route(e *github.PullRequestEvent) (string, Reconciler) {
	switch e.GetAction() {
	case "opened":
		if s.reviewOnOpen {
			return "review", s.review
		}
	case "labeled":
		switch e.GetLabel().GetName() {
		case s.reviewLabel:
			return "review", s.review
		case s.testLabel:
			return "tests", s.tests
		}
	}
	return "", nil
}

func resourceFromEvent(e *github.PullRequestEvent) *githubreconciler.Resource {
	pr := e.GetPullRequest()
	number := pr.GetNumber()
	if number == 0 {
		number = e.GetNumber()
	}
	return &githubreconciler.Resource{
		Owner:   e.GetRepo().GetOwner().GetLogin(),
		Repo:    e.GetRepo().GetName(),
		Number:  number,
		Title:   pr.GetTitle(),
		HeadRef: pr.GetHead().GetRef(),
		HeadSHA: pr.GetHead().GetSHA(),
	}
}
