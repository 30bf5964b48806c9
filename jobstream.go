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



// Package jobstream wires the store, the extraction gateway, the ingestion pipeline
// and the workflow engine into one service.
package jobstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/jobstream/ai"
	"github.com/poiesic/jobstream/ai/gemini"
	"github.com/poiesic/jobstream/ai/openai"
	"github.com/poiesic/jobstream/config"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/executor"
	"github.com/poiesic/jobstream/extraction"
	"github.com/poiesic/jobstream/ingestion"
	"github.com/poiesic/jobstream/storage"
	"github.com/poiesic/jobstream/storage/badger"
	"github.com/poiesic/jobstream/storage/objects"
	"github.com/poiesic/jobstream/workflow"
)

// ShutdownTimeout bounds how long Close waits for running workflows.
const ShutdownTimeout = 30 * time.Second

// ErrConfigRequired is returned by Open without a config.
var ErrConfigRequired = errors.New("config is required")

// Service is an opened jobstream instance.
type Service struct {
	store        *badger.Store
	objects      storage.ObjectStore
	pipelinePool *executor.Pool
	workflowPool *executor.Pool
	pipeline     *ingestion.Pipeline
	engine       *workflow.Engine
	schedules    map[string]time.Duration
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	gateway ai.Gateway
	objects storage.ObjectStore
	memory  bool
	monitor ingestion.Monitor
	logger  *slog.Logger
}

// WithGateway replaces the gateway the AI config would create.
func WithGateway(gateway ai.Gateway) Option {
	return func(o *options) {
		o.gateway = gateway
	}
}

// WithObjectStore replaces the documents directory.
func WithObjectStore(objects storage.ObjectStore) Option {
	return func(o *options) {
		o.objects = objects
	}
}

// WithMemoryStorage keeps records in memory instead of at the configured db path.
func WithMemoryStorage() Option {
	return func(o *options) {
		o.memory = true
	}
}

// WithMonitor observes ingestion state transitions.
func WithMonitor(monitor ingestion.Monitor) Option {
	return func(o *options) {
		o.monitor = monitor
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open builds a service from cfg. Workflows are registered but nothing runs until Start.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	s := &Service{
		objects:   o.objects,
		schedules: make(map[string]time.Duration),
		logger:    o.logger.With("component", "jobstream"),
	}
	if err := s.open(ctx, cfg, o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) open(ctx context.Context, cfg *config.Config, o *options) error {
	var err error
	if o.memory {
		s.store, err = badger.NewMemoryStore()
	} else if cfg.DBPath == "" {
		return config.ErrDBPathRequired
	} else {
		s.store, err = badger.Open(cfg.DBPath)
	}
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	if s.objects == nil {
		s.objects = objects.NewOS(cfg.DocumentsDir)
	}

	gateway := o.gateway
	if gateway == nil {
		if gateway, err = newGateway(ctx, cfg.AI); err != nil {
			return err
		}
	}
	clientOpts := []extraction.Option{extraction.WithLogger(o.logger)}
	if cfg.AI.MaxAttempts > 0 {
		clientOpts = append(clientOpts, extraction.WithMaxAttempts(cfg.AI.MaxAttempts))
	}
	if cfg.AI.CallTimeout > 0 {
		clientOpts = append(clientOpts, extraction.WithCallTimeout(cfg.AI.CallTimeout))
	}
	client, err := extraction.NewClient(gateway, clientOpts...)
	if err != nil {
		return err
	}

	// Workflows submit batches to the pipeline, so each gets its own pool.
	s.pipelinePool, err = executor.New(cfg.Pipeline.PoolSize,
		executor.WithName("ingestion"), executor.WithLogger(o.logger))
	if err != nil {
		return err
	}
	s.workflowPool, err = executor.New(cfg.Workflows.PoolSize,
		executor.WithName("workflow"), executor.WithLogger(o.logger))
	if err != nil {
		return err
	}

	persist := ingestion.DefaultPersistPolicy()
	if cfg.Pipeline.PersistAttempts > 0 {
		persist.MaxAttempts = cfg.Pipeline.PersistAttempts
	}
	s.pipeline, err = ingestion.NewPipeline(s.store, client, s.pipelinePool,
		ingestion.WithLogger(o.logger),
		ingestion.WithObjectStore(s.objects),
		ingestion.WithMonitor(o.monitor),
		ingestion.WithPersistPolicy(persist),
		ingestion.WithMinimalFallback(cfg.Pipeline.MinimalFallback),
	)
	if err != nil {
		return err
	}

	return s.openEngine(cfg.Workflows, o.logger)
}

func (s *Service) openEngine(cfg config.WorkflowsConfig, logger *slog.Logger) error {
	engineOpts := []workflow.Option{workflow.WithLogger(logger)}
	if cfg.Timeout > 0 {
		engineOpts = append(engineOpts, workflow.WithTimeout(cfg.Timeout))
	}
	engine, err := workflow.NewEngine(s.workflowPool, engineOpts...)
	if err != nil {
		return err
	}

	feed, err := workflow.NewFeedSource(s.objects, cfg.PostingsPrefix)
	if err != nil {
		return err
	}
	discovery, err := workflow.NewDiscovery(feed, s.pipeline,
		workflow.WithDiscoveryLogger(logger), workflow.WithProfile(cfg.Profile))
	if err != nil {
		return err
	}

	statuses, err := workflow.NewFeedStatusSource(s.objects, cfg.StatusesPrefix)
	if err != nil {
		return err
	}
	statusOpts := []workflow.StatusOption{workflow.WithStatusLogger(logger)}
	if cfg.StatusConcurrency > 0 {
		statusOpts = append(statusOpts, workflow.WithConcurrency(cfg.StatusConcurrency))
	}
	status, err := workflow.NewStatus(s.store, statuses, statusOpts...)
	if err != nil {
		return err
	}

	for _, wf := range []workflow.Workflow{discovery, status} {
		if err := engine.Register(wf); err != nil {
			return err
		}
	}
	if cfg.DiscoveryInterval > 0 {
		s.schedules[workflow.DiscoveryName] = cfg.DiscoveryInterval
	}
	if cfg.StatusInterval > 0 {
		s.schedules[workflow.StatusName] = cfg.StatusInterval
	}
	s.engine = engine
	return nil
}

func newGateway(ctx context.Context, cfg config.AIConfig) (ai.Gateway, error) {
	aiConfig, err := cfg.Gateway()
	if err != nil {
		return nil, err
	}
	switch aiConfig.Provider {
	case ai.ProviderGemini:
		return gemini.NewGateway(ctx, aiConfig)
	default:
		return openai.NewGateway(aiConfig)
	}
}

// Start runs the workflow engine with the configured schedules until ctx ends or Close
// is called.
func (s *Service) Start(ctx context.Context) error {
	for name, interval := range s.schedules {
		if err := s.engine.Schedule(name, interval); err != nil {
			return err
		}
	}
	return s.engine.Start(ctx)
}

// Close stops the engine, releases both pools and closes the store.
func (s *Service) Close() error {
	var errs []error
	if s.engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		if err := s.engine.Stop(ctx); err != nil {
			s.logger.Error("error stopping workflow engine", "err", err)
			errs = append(errs, err)
		}
		cancel()
	}
	if s.workflowPool != nil {
		s.workflowPool.Release()
	}
	if s.pipelinePool != nil {
		s.pipelinePool.Release()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing store", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IngestJob ingests one posting.
func (s *Service) IngestJob(ctx context.Context, raw ingestion.RawPosting) (*ingestion.Result, error) {
	return s.pipeline.IngestJob(ctx, raw)
}

// ParseResume extracts and stores the résumé document of a profile.
func (s *Service) ParseResume(ctx context.Context, profileID, documentRef string) (*core.StructuredResume, error) {
	return s.pipeline.ParseResume(ctx, ingestion.ResumeRequest{ProfileID: profileID, DocumentRef: documentRef})
}

// RunWorkflow triggers a workflow and waits for its result. The engine must be started.
func (s *Service) RunWorkflow(ctx context.Context, name string) (*workflow.Result, error) {
	return s.engine.TriggerAndWait(ctx, name)
}

func (s *Service) Store() storage.Store {
	return s.store
}

func (s *Service) Objects() storage.ObjectStore {
	return s.objects
}

func (s *Service) Pipeline() *ingestion.Pipeline {
	return s.pipeline
}

func (s *Service) Engine() *workflow.Engine {
	return s.engine
}
