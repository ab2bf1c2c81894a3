package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brandflow/hookd/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			events TEXT NOT NULL DEFAULT '[]',
			headers TEXT NOT NULL DEFAULT '{}',
			timeout_ms INTEGER NOT NULL DEFAULT 10000,
			retry_policy TEXT NOT NULL DEFAULT '{}',
			active INTEGER NOT NULL DEFAULT 1,
			total_deliveries INTEGER NOT NULL DEFAULT 0,
			successful_deliveries INTEGER NOT NULL DEFAULT 0,
			failed_deliveries INTEGER NOT NULL DEFAULT 0,
			last_triggered_at DATETIME,
			created_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_attempts (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			response_status INTEGER NOT NULL DEFAULT 0,
			response_body TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL DEFAULT 0,
			delivered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			action TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_tenant ON subscriptions(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_subscription ON delivery_attempts(subscription_id, delivered_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_subscription ON audit_log(subscription_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Subscriptions ---

const subscriptionColumns = `id, tenant_id, name, url, secret, events, headers, timeout_ms, retry_policy, active,
	total_deliveries, successful_deliveries, failed_deliveries, last_triggered_at, created_by, created_at, updated_at`

func (s *SQLiteStorage) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	events, _ := json.Marshal(sub.Events)
	headers, _ := json.Marshal(sub.Headers)
	retry, _ := json.Marshal(sub.Retry)
	active := 0
	if sub.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.TenantID, sub.Name, sub.URL, sub.Secret, string(events), string(headers),
		sub.TimeoutMs, string(retry), active,
		sub.TotalDeliveries, sub.SuccessfulDeliveries, sub.FailedDeliveries,
		sub.LastTriggeredAt, sub.CreatedBy, sub.CreatedAt, sub.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) scanSubscription(row interface{ Scan(...interface{}) error }) (*models.Subscription, error) {
	var sub models.Subscription
	var events, headers, retry string
	var active int
	err := row.Scan(&sub.ID, &sub.TenantID, &sub.Name, &sub.URL, &sub.Secret, &events, &headers,
		&sub.TimeoutMs, &retry, &active,
		&sub.TotalDeliveries, &sub.SuccessfulDeliveries, &sub.FailedDeliveries,
		&sub.LastTriggeredAt, &sub.CreatedBy, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(events), &sub.Events)
	json.Unmarshal([]byte(headers), &sub.Headers)
	json.Unmarshal([]byte(retry), &sub.Retry)
	sub.Active = active == 1
	return &sub, nil
}

func (s *SQLiteStorage) GetSubscription(ctx context.Context, tenantID, id string) (*models.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ? AND tenant_id = ?`, id, tenantID)
	sub, err := s.scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

func (s *SQLiteStorage) ListSubscriptions(ctx context.Context, tenantID string) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := s.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStorage) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	events, _ := json.Marshal(sub.Events)
	headers, _ := json.Marshal(sub.Headers)
	retry, _ := json.Marshal(sub.Retry)
	active := 0
	if sub.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET name = ?, url = ?, events = ?, headers = ?, timeout_ms = ?,
		 retry_policy = ?, active = ?, updated_at = ? WHERE id = ?`,
		sub.Name, sub.URL, string(events), string(headers), sub.TimeoutMs,
		string(retry), active, time.Now().UTC(), sub.ID,
	)
	return err
}

func (s *SQLiteStorage) DeleteSubscription(ctx context.Context, id string) error {
	// delivery_attempts rows go with it via ON DELETE CASCADE
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) SetSubscriptionActive(ctx context.Context, id string, active bool) error {
	a := 0
	if active {
		a = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = ?, updated_at = ? WHERE id = ?`, a, time.Now().UTC(), id)
	return err
}

func (s *SQLiteStorage) UpdateSubscriptionSecret(ctx context.Context, id, secret string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET secret = ?, updated_at = ? WHERE id = ?`, secret, time.Now().UTC(), id)
	return err
}

func (s *SQLiteStorage) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE tenant_id = ? AND active = 1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := s.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		if sub.SubscribedTo(eventType) {
			subs = append(subs, *sub)
		}
	}
	return subs, rows.Err()
}

// --- Delivery attempts ---

func (s *SQLiteStorage) CreateAttempt(ctx context.Context, a *models.DeliveryAttempt) error {
	success := 0
	if a.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_attempts (id, subscription_id, event_type, payload, response_status, response_body, success, delivered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SubscriptionID, a.EventType, string(a.Payload), a.ResponseStatus, a.ResponseBody, success, a.DeliveredAt,
	)
	return err
}

func (s *SQLiteStorage) ListAttempts(ctx context.Context, subscriptionID string, limit int) ([]models.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subscription_id, event_type, payload, response_status, response_body, success, delivered_at
		 FROM delivery_attempts WHERE subscription_id = ? ORDER BY delivered_at DESC LIMIT ?`,
		subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		var payload string
		var success int
		if err := rows.Scan(&a.ID, &a.SubscriptionID, &a.EventType, &payload, &a.ResponseStatus, &a.ResponseBody, &success, &a.DeliveredAt); err != nil {
			return nil, err
		}
		a.Payload = json.RawMessage(payload)
		a.Success = success == 1
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *SQLiteStorage) IncrementDeliveryCounters(ctx context.Context, subscriptionID string, success bool, triggeredAt time.Time) error {
	succ, fail := 0, 1
	if success {
		succ, fail = 1, 0
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET
		 total_deliveries = total_deliveries + 1,
		 successful_deliveries = successful_deliveries + ?,
		 failed_deliveries = failed_deliveries + ?,
		 last_triggered_at = ?
		 WHERE id = ?`,
		succ, fail, triggeredAt, subscriptionID,
	)
	return err
}

func (s *SQLiteStorage) EventTypeCounts(ctx context.Context, tenantID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.event_type, COUNT(*) FROM delivery_attempts a
		 JOIN subscriptions s ON a.subscription_id = s.id
		 WHERE s.tenant_id = ? GROUP BY a.event_type`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var eventType string
		var n int64
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, err
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}

// --- Audit log ---

func (s *SQLiteStorage) CreateAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	metadata, _ := json.Marshal(e.Metadata)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, subscription_id, tenant_id, action, actor_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SubscriptionID, e.TenantID, e.Action, e.ActorID, string(metadata), e.CreatedAt,
	)
	return err
}

func (s *SQLiteStorage) ListAuditEntries(ctx context.Context, subscriptionID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subscription_id, tenant_id, action, actor_id, metadata, created_at
		 FROM audit_log WHERE subscription_id = ? ORDER BY created_at DESC LIMIT ?`,
		subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var metadata string
		if err := rows.Scan(&e.ID, &e.SubscriptionID, &e.TenantID, &e.Action, &e.ActorID, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(metadata), &e.Metadata)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
