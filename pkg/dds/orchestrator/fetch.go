package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/dds/evaluator"
	"github.com/ddsurveys/dds-backend/pkg/dds/normalizer"
	"github.com/ddsurveys/dds-backend/pkg/dds/providers"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

// fetchProvider obtains the normalized record of one provider. The second return value is
// false when the respondent never granted access to the provider.
func (o *Orchestrator) fetchProvider(ctx context.Context, logger *slog.Logger, out *Outcome, provider string, categories []string) (evaluator.Source, bool) {
	adapter, err := o.Providers.Get(provider)
	if err != nil {
		return evaluator.Source{Err: ddsTypes.NewConfigurationError("no adapter for provider "+provider, err)}, true
	}

	creds := ddsTypes.Credentials{
		InstanceID:   out.InstanceID,
		RespondentID: out.RespondentID,
		ProjectID:    out.ProjectID,
	}

	var access *ddsTypes.DataProviderAccess
	info, _ := o.Catalog.Provider(provider)
	if info.Type != ddsTypes.DATA_PROVIDER_TYPE_GENERIC {
		access, err = o.Store.GetDataProviderAccess(out.InstanceID, out.RespondentID, out.ProjectID, provider)
		if err != nil {
			return evaluator.Source{Err: ddsTypes.NewProviderResponseError(provider, 0, err)}, true
		}
		if access == nil {
			logger.Debug("no access granted")
			return evaluator.Source{}, false
		}
	}

	refreshed := false
	if access != nil && access.IsExpired(o.now()) {
		updated, err := o.refreshWithRetry(ctx, logger, out.InstanceID, *access)
		if err != nil {
			return evaluator.Source{Err: err}, true
		}
		access = &updated
		refreshed = true
	}
	if access != nil {
		creds = access.Credentials(out.InstanceID)
	}

	raw, err := o.fetchWithRetry(ctx, logger, adapter, &creds, access, &refreshed, categories)
	if err != nil {
		return evaluator.Source{Err: err}, true
	}
	record, err := normalizer.Normalize(raw)
	if err != nil {
		return evaluator.Source{Err: err}, true
	}
	return evaluator.Source{Record: &record}, true
}

// fetchWithRetry retries retryable failures with exponential backoff. An auth failure triggers
// a single token refresh when the access was not refreshed yet.
func (o *Orchestrator) fetchWithRetry(
	ctx context.Context,
	logger *slog.Logger,
	adapter providers.Provider,
	creds *ddsTypes.Credentials,
	access *ddsTypes.DataProviderAccess,
	refreshed *bool,
	categories []string,
) (ddsTypes.RawPayload, error) {
	attempt := 1
	for {
		raw, err := adapter.FetchRawData(ctx, *creds, categories)
		if err == nil {
			return raw, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return raw, ctxErr
		}

		if ddsTypes.IsKind(err, ddsTypes.ERROR_KIND_PROVIDER_AUTH) && access != nil && !*refreshed && access.RefreshToken != "" {
			*refreshed = true
			updated, refreshErr := o.refreshWithRetry(ctx, logger, creds.InstanceID, *access)
			if refreshErr != nil {
				return raw, refreshErr
			}
			*access = updated
			*creds = updated.Credentials(creds.InstanceID)
			continue
		}

		if !ddsTypes.IsRetryable(err) || attempt >= o.conf.MaxFetchAttempts {
			return raw, err
		}
		if err := o.backoff(ctx, logger, adapter.Name(), attempt, "provider fetch failed, retrying", err); err != nil {
			return raw, err
		}
		attempt++
	}
}

// refreshWithRetry retries retryable token refresh failures with the same backoff as fetches.
func (o *Orchestrator) refreshWithRetry(ctx context.Context, logger *slog.Logger, instanceID string, access ddsTypes.DataProviderAccess) (ddsTypes.DataProviderAccess, error) {
	attempt := 1
	for {
		updated, err := o.refreshAccess(ctx, logger, instanceID, access)
		if err == nil {
			return updated, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return access, ctxErr
		}
		if !ddsTypes.IsRetryable(err) || attempt >= o.conf.MaxFetchAttempts {
			return access, err
		}
		if err := o.backoff(ctx, logger, access.Provider, attempt, "token refresh failed, retrying", err); err != nil {
			return access, err
		}
		attempt++
	}
}

func (o *Orchestrator) backoff(ctx context.Context, logger *slog.Logger, provider string, attempt int, msg string, cause error) error {
	d := o.conf.BaseBackoff * time.Duration(1<<(attempt-1))
	logger.Warn(msg, slog.Int("attempt", attempt), slog.Duration("backoff", d), slog.String("error", cause.Error()))
	if o.Metrics != nil {
		o.Metrics.fetchRetriesTotal.WithLabelValues(provider).Inc()
	}
	return o.sleep(ctx, d)
}

// refreshAccess renews the access token and persists the new tokens. A failed persist is
// logged; the refreshed token is still used for this run.
func (o *Orchestrator) refreshAccess(ctx context.Context, logger *slog.Logger, instanceID string, access ddsTypes.DataProviderAccess) (ddsTypes.DataProviderAccess, error) {
	if o.OAuth == nil {
		return access, ddsTypes.NewProviderAuthError(access.Provider, 0, errNoRefresher)
	}
	conn, err := o.Store.GetDataConnection(instanceID, access.ProjectID, access.Provider)
	if err != nil {
		return access, ddsTypes.NewConfigurationError("reading data connection of "+access.Provider, err)
	}

	updated, err := o.OAuth.Refresh(ctx, conn, access)
	if o.Metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		o.Metrics.tokenRefreshTotal.WithLabelValues(access.Provider, result).Inc()
	}
	if err != nil {
		return access, err
	}
	logger.Info("access token refreshed", slog.Time("expiry", updated.Expiry))

	if err := o.Store.UpdateDataProviderAccessTokens(instanceID, updated); err != nil {
		logger.Error("failed to persist refreshed token", slog.String("error", err.Error()))
	}
	return updated, nil
}
