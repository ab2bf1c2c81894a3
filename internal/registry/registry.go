package registry

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandflow/hookd/internal/models"
	"github.com/brandflow/hookd/internal/probe"
	"github.com/brandflow/hookd/internal/storage"
)

// Identity is the verified caller identity supplied by the upstream auth
// layer. The registry trusts it and only enforces membership and role.
type Identity struct {
	ActorID  string
	TenantID string
	Role     models.TenantRole
}

func (id Identity) member() bool {
	return id.ActorID != "" && id.TenantID != ""
}

type Registry struct {
	store        storage.Storage
	prober       *probe.Prober
	probeTimeout time.Duration
	log          zerolog.Logger
}

func New(store storage.Storage, prober *probe.Prober, probeTimeout time.Duration, log zerolog.Logger) *Registry {
	if probeTimeout <= 0 {
		probeTimeout = time.Duration(models.DefaultTimeoutMs) * time.Millisecond
	}
	return &Registry{
		store:        store,
		prober:       prober,
		probeTimeout: probeTimeout,
		log:          log,
	}
}

type CreateInput struct {
	Name      string
	URL       string
	Events    []string
	Secret    string
	Headers   map[string]string
	TimeoutMs int
	Retry     *models.RetryPolicy
}

// Create validates the input, probes the target URL, and persists a new
// subscription with all counters at zero. The returned subscription carries
// the full secret; this is the one read path that does, so the caller can
// capture it for signature verification setup. Every later read masks it.
func (r *Registry) Create(ctx context.Context, id Identity, in CreateInput) (*models.Subscription, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}
	if !id.Role.CanManageWebhooks() {
		return nil, ErrForbidden
	}

	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Msg: "is required"}
	}
	if err := validateURL(in.URL); err != nil {
		return nil, err
	}
	if len(in.Events) == 0 {
		return nil, &ValidationError{Field: "events", Msg: "at least one event type is required"}
	}
	if invalid := models.InvalidEventTypes(in.Events); len(invalid) > 0 {
		return nil, &InvalidEventTypesError{Invalid: invalid, Catalog: models.EventCatalog}
	}

	timeoutMs := in.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = models.DefaultTimeoutMs
	}
	if err := validateTimeout(timeoutMs); err != nil {
		return nil, err
	}

	retry := models.DefaultRetryPolicy()
	if in.Retry != nil {
		retry = *in.Retry
		if err := validateRetry(retry); err != nil {
			return nil, err
		}
	}

	secret := in.Secret
	if secret == "" {
		secret = models.NewSecret()
	}

	if res := r.prober.Probe(ctx, in.URL, secret, r.probeTimeoutFor(timeoutMs)); !res.OK {
		return nil, &EndpointUnreachableError{URL: in.URL, Reason: res.Error}
	}

	now := time.Now().UTC()
	sub := &models.Subscription{
		ID:        models.NewID("sub"),
		TenantID:  id.TenantID,
		Name:      in.Name,
		URL:       in.URL,
		Events:    in.Events,
		Active:    true,
		Secret:    secret,
		Headers:   in.Headers,
		TimeoutMs: timeoutMs,
		Retry:     retry,
		CreatedBy: id.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sub.Headers == nil {
		sub.Headers = map[string]string{}
	}

	if err := r.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	r.audit(ctx, sub, id, models.AuditCreated, map[string]any{
		"url":    sub.URL,
		"events": sub.Events,
	})
	r.log.Info().Str("subscription_id", sub.ID).Str("tenant_id", sub.TenantID).Msg("subscription created")
	return sub, nil
}

type UpdateInput struct {
	Name      *string
	URL       *string
	Events    []string
	Headers   map[string]string
	TimeoutMs *int
	Retry     *models.RetryPolicy
}

func (r *Registry) Update(ctx context.Context, id Identity, subID string, in UpdateInput) (*models.Subscription, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}
	if !id.Role.CanManageWebhooks() {
		return nil, ErrForbidden
	}

	sub, err := r.store.GetSubscription(ctx, id.TenantID, subID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}

	prevURL := sub.URL
	prevEvents := append([]string(nil), sub.Events...)

	if in.Name != nil {
		if *in.Name == "" {
			return nil, &ValidationError{Field: "name", Msg: "is required"}
		}
		sub.Name = *in.Name
	}
	if in.Events != nil {
		if len(in.Events) == 0 {
			return nil, &ValidationError{Field: "events", Msg: "at least one event type is required"}
		}
		if invalid := models.InvalidEventTypes(in.Events); len(invalid) > 0 {
			return nil, &InvalidEventTypesError{Invalid: invalid, Catalog: models.EventCatalog}
		}
		sub.Events = in.Events
	}
	if in.Headers != nil {
		sub.Headers = in.Headers
	}
	if in.TimeoutMs != nil {
		if err := validateTimeout(*in.TimeoutMs); err != nil {
			return nil, err
		}
		sub.TimeoutMs = *in.TimeoutMs
	}
	if in.Retry != nil {
		if err := validateRetry(*in.Retry); err != nil {
			return nil, err
		}
		sub.Retry = *in.Retry
	}

	// A URL change is re-probed with the effective timeout before anything
	// is written.
	if in.URL != nil && *in.URL != prevURL {
		if err := validateURL(*in.URL); err != nil {
			return nil, err
		}
		if res := r.prober.Probe(ctx, *in.URL, sub.Secret, r.probeTimeoutFor(sub.TimeoutMs)); !res.OK {
			return nil, &EndpointUnreachableError{URL: *in.URL, Reason: res.Error}
		}
		sub.URL = *in.URL
	}

	sub.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	r.audit(ctx, sub, id, models.AuditUpdated, map[string]any{
		"previous_url":    prevURL,
		"previous_events": prevEvents,
		"url":             sub.URL,
		"events":          sub.Events,
	})
	masked := *sub
	masked.Secret = models.MaskSecret(sub.Secret)
	return &masked, nil
}

func (r *Registry) Delete(ctx context.Context, id Identity, subID string) error {
	if !id.member() {
		return ErrUnauthorized
	}
	if !id.Role.CanManageWebhooks() {
		return ErrForbidden
	}

	sub, err := r.store.GetSubscription(ctx, id.TenantID, subID)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrNotFound
	}

	// The audit entry outlives the subscription and captures its final
	// delivery totals; the attempt history goes with the row.
	r.audit(ctx, sub, id, models.AuditDeleted, map[string]any{
		"url":                   sub.URL,
		"total_deliveries":      sub.TotalDeliveries,
		"successful_deliveries": sub.SuccessfulDeliveries,
		"failed_deliveries":     sub.FailedDeliveries,
	})

	if err := r.store.DeleteSubscription(ctx, subID); err != nil {
		return err
	}
	r.log.Info().Str("subscription_id", subID).Str("tenant_id", id.TenantID).Msg("subscription deleted")
	return nil
}

func (r *Registry) Toggle(ctx context.Context, id Identity, subID string) (*models.Subscription, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}
	if !id.Role.CanManageWebhooks() {
		return nil, ErrForbidden
	}

	sub, err := r.store.GetSubscription(ctx, id.TenantID, subID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}

	sub.Active = !sub.Active
	if err := r.store.SetSubscriptionActive(ctx, subID, sub.Active); err != nil {
		return nil, err
	}

	action := models.AuditDeactivated
	if sub.Active {
		action = models.AuditActivated
	}
	r.audit(ctx, sub, id, action, nil)

	masked := *sub
	masked.Secret = models.MaskSecret(sub.Secret)
	return &masked, nil
}

// RegenerateSecret replaces the signing secret. Signatures computed with the
// old secret are invalid from this point on. The full new secret is returned
// this one time; the audit entry records only lengths, never values.
func (r *Registry) RegenerateSecret(ctx context.Context, id Identity, subID string) (*models.Subscription, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}
	if !id.Role.CanManageWebhooks() {
		return nil, ErrForbidden
	}

	sub, err := r.store.GetSubscription(ctx, id.TenantID, subID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}

	oldLen := len(sub.Secret)
	sub.Secret = models.NewSecret()
	if err := r.store.UpdateSubscriptionSecret(ctx, subID, sub.Secret); err != nil {
		return nil, err
	}

	r.audit(ctx, sub, id, models.AuditSecretRegenerated, map[string]any{
		"old_secret_length": oldLen,
		"new_secret_length": len(sub.Secret),
	})
	return sub, nil
}

// Get returns one subscription with its secret masked. Read access requires
// only tenant membership.
func (r *Registry) Get(ctx context.Context, id Identity, subID string) (*models.Subscription, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}
	sub, err := r.store.GetSubscription(ctx, id.TenantID, subID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}
	sub.Secret = models.MaskSecret(sub.Secret)
	return sub, nil
}

func (r *Registry) List(ctx context.Context, id Identity) ([]models.Subscription, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}
	subs, err := r.store.ListSubscriptions(ctx, id.TenantID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].Secret = models.MaskSecret(subs[i].Secret)
	}
	return subs, nil
}

// Resolve looks a subscription up with its secret intact, for internal
// callers (manual test deliveries) that must sign with it.
func (r *Registry) Resolve(ctx context.Context, id Identity, subID string) (*models.Subscription, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}
	sub, err := r.store.GetSubscription(ctx, id.TenantID, subID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}
	return sub, nil
}

func (r *Registry) RecentAttempts(ctx context.Context, id Identity, subID string, limit int) ([]models.DeliveryAttempt, error) {
	if _, err := r.Get(ctx, id, subID); err != nil {
		return nil, err
	}
	return r.store.ListAttempts(ctx, subID, limit)
}

func (r *Registry) AuditHistory(ctx context.Context, id Identity, subID string, limit int) ([]models.AuditEntry, error) {
	if !id.member() {
		return nil, ErrUnauthorized
	}
	return r.store.ListAuditEntries(ctx, subID, limit)
}

// RecordTest writes the audit entry for a manual test delivery.
func (r *Registry) RecordTest(ctx context.Context, id Identity, sub *models.Subscription, success bool, statusCode int) {
	r.audit(ctx, sub, id, models.AuditTested, map[string]any{
		"success":     success,
		"status_code": statusCode,
	})
}

func (r *Registry) audit(ctx context.Context, sub *models.Subscription, id Identity, action models.AuditAction, metadata map[string]any) {
	entry := &models.AuditEntry{
		ID:             models.NewID("aud"),
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		Action:         action,
		ActorID:        id.ActorID,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.store.CreateAuditEntry(ctx, entry); err != nil {
		r.log.Error().Err(err).Str("subscription_id", sub.ID).Str("action", string(action)).Msg("failed to write audit entry")
	}
}

// probeTimeoutFor bounds a registration probe by the subscription's own
// timeout when configured, the registry default otherwise.
func (r *Registry) probeTimeoutFor(timeoutMs int) time.Duration {
	if timeoutMs > 0 {
		return time.Duration(timeoutMs) * time.Millisecond
	}
	return r.probeTimeout
}

func validateURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "url", Msg: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Msg: "must be a valid HTTP or HTTPS URL"}
	}
	return nil
}

func validateTimeout(timeoutMs int) error {
	if timeoutMs < models.MinTimeoutMs || timeoutMs > models.MaxTimeoutMs {
		return &ValidationError{Field: "timeout_ms", Msg: "must be between 1000 and 30000"}
	}
	return nil
}

func validateRetry(p models.RetryPolicy) error {
	if p.MaxAttempts < models.MinRetryAttempts || p.MaxAttempts > models.MaxRetryAttempts {
		return &ValidationError{Field: "retry_policy.max_attempts", Msg: "must be between 1 and 10"}
	}
	if p.Backoff != models.BackoffLinear && p.Backoff != models.BackoffExponential {
		return &ValidationError{Field: "retry_policy.backoff_strategy", Msg: "must be linear or exponential"}
	}
	if p.InitialDelayMs < models.MinInitialDelayMs {
		return &ValidationError{Field: "retry_policy.initial_delay_ms", Msg: "must be at least 1000"}
	}
	return nil
}
