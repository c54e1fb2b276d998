// Package orchestrator drives the variable injection of one respondent: fetch provider data,
// evaluate the project's custom variables and write them into the survey flow, at most once.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ddsurveys/dds-backend/pkg/dds/catalog"
	"github.com/ddsurveys/dds-backend/pkg/dds/evaluator"
	"github.com/ddsurveys/dds-backend/pkg/dds/flow"
	"github.com/ddsurveys/dds-backend/pkg/dds/providers"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	"github.com/ddsurveys/dds-backend/pkg/flowlock"
)

const (
	DEFAULT_MAX_FETCH_ATTEMPTS = 3
	DEFAULT_BASE_BACKOFF       = 500 * time.Millisecond
	DEFAULT_LOCK_WAIT          = 10 * time.Second
)

type Status string

const (
	STATUS_SUCCEEDED         Status = "succeeded"
	STATUS_PARTIAL           Status = "partial"
	STATUS_FAILED            Status = "failed"
	STATUS_ALREADY_COMPLETED Status = "already_completed"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	GetProject(instanceID string, projectID string) (ddsTypes.Project, error)
	GetCustomVariableDefinitions(instanceID string, projectID string) ([]ddsTypes.CustomVariable, error)
	GetDataConnection(instanceID string, projectID string, provider string) (ddsTypes.DataConnection, error)
	GetDataProviderAccess(instanceID string, respondentID string, projectID string, provider string) (*ddsTypes.DataProviderAccess, error)
	UpdateDataProviderAccessTokens(instanceID string, access ddsTypes.DataProviderAccess) error
	IsInjectionComplete(instanceID string, respondentID string, projectID string) (bool, error)
	RecordInjectionComplete(instanceID string, marker ddsTypes.InjectionMarker) error
}

// SurveyPlatform reads and replaces whole survey flows.
type SurveyPlatform interface {
	GetFlow(ctx context.Context, surveyID string) ([]byte, error)
	UpdateFlow(ctx context.Context, surveyID string, flow []byte) error
}

type ProviderRegistry interface {
	Get(name string) (providers.Provider, error)
}

type TokenRefresher interface {
	Refresh(ctx context.Context, conn ddsTypes.DataConnection, access ddsTypes.DataProviderAccess) (ddsTypes.DataProviderAccess, error)
}

type Config struct {
	MaxFetchAttempts int           `yaml:"max_fetch_attempts"`
	BaseBackoff      time.Duration `yaml:"base_backoff"`
	LockWait         time.Duration `yaml:"lock_wait"`
}

type Dependencies struct {
	Store     Store
	Platform  SurveyPlatform
	Providers ProviderRegistry
	OAuth     TokenRefresher
	Locker    flowlock.Locker
	Catalog   *catalog.Catalog
	Metrics   *Metrics
}

type Orchestrator struct {
	Dependencies
	evaluator *evaluator.Evaluator
	conf      Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(deps Dependencies, conf Config) *Orchestrator {
	if conf.MaxFetchAttempts <= 0 {
		conf.MaxFetchAttempts = DEFAULT_MAX_FETCH_ATTEMPTS
	}
	if conf.BaseBackoff <= 0 {
		conf.BaseBackoff = DEFAULT_BASE_BACKOFF
	}
	if conf.LockWait <= 0 {
		conf.LockWait = DEFAULT_LOCK_WAIT
	}
	if deps.Locker == nil {
		deps.Locker = flowlock.NewKeyedMutex()
	}
	return &Orchestrator{
		Dependencies: deps,
		evaluator:    evaluator.NewEvaluator(deps.Catalog),
		conf:         conf,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Outcome is the terminal state of a run.
type Outcome struct {
	RunID        string
	InstanceID   string
	ProjectID    string
	RespondentID string
	Status       Status
	Results      []evaluator.Result
	// Err is the run level error of a failed run.
	Err error
}

// ValidateProject checks the project's custom variables against the catalog.
func (o *Orchestrator) ValidateProject(instanceID string, projectID string) error {
	defs, err := o.Store.GetCustomVariableDefinitions(instanceID, projectID)
	if err != nil {
		return err
	}
	return o.Catalog.ValidateDefinitions(defs)
}

// Run injects the custom variables of one respondent into the project's survey flow. Runs for
// a respondent whose variables were already written return STATUS_ALREADY_COMPLETED without
// side effects. The returned error equals Outcome.Err.
func (o *Orchestrator) Run(ctx context.Context, instanceID string, projectID string, respondentID string) (Outcome, error) {
	out := Outcome{
		RunID:        uuid.NewString(),
		InstanceID:   instanceID,
		ProjectID:    projectID,
		RespondentID: respondentID,
	}
	logger := slog.With(
		slog.String("runID", out.RunID),
		slog.String("instanceID", instanceID),
		slog.String("projectID", projectID),
		slog.String("respondentID", respondentID),
	)

	err := o.run(ctx, logger, &out)
	if err != nil {
		out.Status = STATUS_FAILED
		out.Err = err
		kind, _ := ddsTypes.KindOf(err)
		logger.Error("variable injection failed", slog.String("errorKind", string(kind)), slog.String("error", err.Error()))
	}
	if o.Metrics != nil {
		o.Metrics.runsTotal.WithLabelValues(string(out.Status)).Inc()
	}
	return out, err
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, out *Outcome) error {
	done, err := o.Store.IsInjectionComplete(out.InstanceID, out.RespondentID, out.ProjectID)
	if err != nil {
		return fmt.Errorf("reading completion marker: %w", err)
	}
	if done {
		logger.Debug("variables already injected")
		out.Status = STATUS_ALREADY_COMPLETED
		return nil
	}

	project, err := o.Store.GetProject(out.InstanceID, out.ProjectID)
	if err != nil {
		return fmt.Errorf("reading project: %w", err)
	}
	if project.SurveyID == "" {
		return ddsTypes.NewConfigurationError("project "+out.ProjectID+" has no survey", nil)
	}

	defs, err := o.Store.GetCustomVariableDefinitions(out.InstanceID, out.ProjectID)
	if err != nil {
		return fmt.Errorf("reading custom variables: %w", err)
	}
	if err := o.Catalog.ValidateDefinitions(defs); err != nil {
		return err
	}

	sources := o.fetchAll(ctx, logger, out, defs)
	if err := ctx.Err(); err != nil {
		return err
	}

	out.Results = o.evaluator.EvaluateAll(defs, sources)
	failed := 0
	for _, r := range out.Results {
		if r.State == evaluator.STATE_FAILED {
			failed++
			logger.Warn("custom variable failed", slog.String("field", r.Field), slog.String("errorKind", string(r.ErrorKind())), slog.String("error", errString(r.Err)))
		}
		if o.Metrics != nil {
			o.Metrics.evaluationsTotal.WithLabelValues(r.Definition.Provider, string(r.State)).Inc()
		}
	}

	committed, err := o.commit(ctx, logger, out, project)
	if err != nil {
		return err
	}
	if !committed {
		logger.Debug("variables injected by a concurrent run")
		out.Status = STATUS_ALREADY_COMPLETED
		return nil
	}

	out.Status = STATUS_SUCCEEDED
	if failed > 0 {
		out.Status = STATUS_PARTIAL
	}
	logger.Info("variables injected", slog.Int("variables", len(out.Results)), slog.Int("failed", failed))
	return nil
}

// fetchAll fetches every provider the definitions refer to, concurrently. Providers without
// a respondent grant are absent from the result.
func (o *Orchestrator) fetchAll(ctx context.Context, logger *slog.Logger, out *Outcome, defs []ddsTypes.CustomVariable) map[string]evaluator.Source {
	categories := map[string][]string{}
	order := []string{}
	for _, def := range defs {
		if _, ok := categories[def.Provider]; !ok {
			order = append(order, def.Provider)
		}
		categories[def.Provider] = append(categories[def.Provider], def.Category)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sources = map[string]evaluator.Source{}
	)
	for _, provider := range order {
		wg.Add(1)
		go func(provider string) {
			defer wg.Done()
			source, granted := o.fetchProvider(ctx, logger.With(slog.String("provider", provider)), out, provider, categories[provider])
			if !granted {
				return
			}
			mu.Lock()
			sources[provider] = source
			mu.Unlock()
		}(provider)
	}
	wg.Wait()
	return sources
}

// commit writes the results into the survey flow and records the completion marker while
// holding the per flow lock. It reports false without writing when the marker was recorded
// by another run in the meantime.
func (o *Orchestrator) commit(ctx context.Context, logger *slog.Logger, out *Outcome, project ddsTypes.Project) (bool, error) {
	key := flowlock.Key(out.InstanceID, project.ID.Hex(), project.SurveyID)
	unlock, err := o.Locker.Lock(ctx, key, o.conf.LockWait)
	if err != nil {
		return false, err
	}
	defer unlock()

	done, err := o.Store.IsInjectionComplete(out.InstanceID, out.RespondentID, out.ProjectID)
	if err != nil {
		return false, fmt.Errorf("reading completion marker: %w", err)
	}
	if done {
		return false, nil
	}

	if len(out.Results) > 0 {
		if err := o.writeFlow(ctx, logger, project, out.Results); err != nil {
			return false, err
		}
	}

	err = o.Store.RecordInjectionComplete(out.InstanceID, ddsTypes.InjectionMarker{
		RespondentID:  out.RespondentID,
		ProjectID:     out.ProjectID,
		RunID:         out.RunID,
		VariableCount: len(out.Results),
		CompletedAt:   o.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("recording completion marker: %w", err)
	}
	return true, nil
}

// writeFlow upserts all results into the survey flow as one whole flow replace. Results
// without a value only declare their field and never overwrite a value already in the flow.
// The caller holds the flow lock.
func (o *Orchestrator) writeFlow(ctx context.Context, logger *slog.Logger, project ddsTypes.Project, results []evaluator.Result) error {
	start := o.now()
	defer func() {
		if o.Metrics != nil {
			o.Metrics.flowWriteDuration.Observe(o.now().Sub(start).Seconds())
		}
	}()

	raw, err := o.Platform.GetFlow(ctx, project.SurveyID)
	if err != nil {
		return err
	}
	tree, err := flow.Decode(raw)
	if err != nil {
		return ddsTypes.NewFlowLookupError("decoding flow of survey "+project.SurveyID, err)
	}
	block, err := tree.EnsureEmbeddedDataBlock()
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.State == evaluator.STATE_SUCCEEDED {
			err = tree.UpsertVariable(block.FlowID(), r.Description, r.Field, string(r.VariableType), r.Value)
		} else {
			err = tree.DeclareVariable(block.FlowID(), r.Description, r.Field, string(r.VariableType))
		}
		if err != nil {
			return err
		}
	}
	encoded, err := tree.Encode()
	if err != nil {
		return ddsTypes.NewFlowWriteError("encoding flow of survey "+project.SurveyID, 0, err)
	}

	// last point where a cancelled run leaves no trace
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.Platform.UpdateFlow(ctx, project.SurveyID, encoded); err != nil {
		return err
	}
	logger.Debug("survey flow updated", slog.String("surveyID", project.SurveyID), slog.String("embeddedDataFlowID", block.FlowID()))
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsRetryable reports whether a failed run may succeed when run again.
func IsRetryable(err error) bool {
	return ddsTypes.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
}

var errNoRefresher = errors.New("token expired and no refresher configured")
