package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/molbhav/molbhav/pkg/types"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage and ensures the schema.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStorage{
		db:      db,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}

	err = s.ensureSchema()
	if err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return s, nil
}

func (p *PostgresStorage) ensureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS offer_events (
			session_id         TEXT NOT NULL,
			round              INT NOT NULL,
			actor              TEXT NOT NULL,
			buyer_ref          TEXT NOT NULL,
			price              DOUBLE PRECISION NOT NULL,
			message            TEXT NOT NULL DEFAULT '',
			tactic             TEXT NOT NULL DEFAULT '',
			features           JSONB,
			validator_override BOOLEAN NOT NULL DEFAULT FALSE,
			coupon_id          TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, round, actor)
		)`,
		`CREATE INDEX IF NOT EXISTS offer_events_buyer_ref_idx ON offer_events (buyer_ref)`,
		`CREATE TABLE IF NOT EXISTS session_summaries (
			session_id   TEXT PRIMARY KEY,
			product_id   TEXT NOT NULL,
			buyer_ref    TEXT NOT NULL,
			token_hash   TEXT NOT NULL DEFAULT '',
			state        TEXT NOT NULL,
			tactic       TEXT NOT NULL DEFAULT '',
			rounds       INT NOT NULL DEFAULT 0,
			anchor_price DOUBLE PRECISION NOT NULL,
			final_price  DOUBLE PRECISION NOT NULL,
			agreed_price DOUBLE PRECISION,
			bot_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
			degraded     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL,
			closed_at    TIMESTAMPTZ,
			expires_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS session_summaries_buyer_ref_idx ON session_summaries (buyer_ref)`,
		`CREATE TABLE IF NOT EXISTS products (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			category      TEXT NOT NULL DEFAULT '',
			anchor_price  DOUBLE PRECISION NOT NULL,
			cost_price    DOUBLE PRECISION NOT NULL,
			min_margin    DOUBLE PRECISION NOT NULL,
			target_margin DOUBLE PRECISION NOT NULL,
			metadata      JSONB,
			active        BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS coupons (
			id           TEXT PRIMARY KEY,
			code         TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT '',
			min_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
			min_round    INT NOT NULL DEFAULT 0,
			discount_pct DOUBLE PRECISION NOT NULL,
			max_discount DOUBLE PRECISION NOT NULL DEFAULT 0,
			active       BOOLEAN NOT NULL DEFAULT TRUE,
			created_at   TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		_, err := p.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	return nil
}

func (p *PostgresStorage) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// AppendOfferEvent inserts one offer row; replays are swallowed by the
// composite primary key.
func (p *PostgresStorage) AppendOfferEvent(ctx context.Context, sessionID, buyerRef string, offer *types.Offer) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	var features []byte
	if len(offer.Features) > 0 {
		raw, err := json.Marshal(offer.Features)
		if err != nil {
			return fmt.Errorf("marshal offer features: %w", err)
		}
		features = raw
	}

	query := `
		INSERT INTO offer_events (
			session_id, round, actor, buyer_ref, price, message, tactic,
			features, validator_override, coupon_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id, round, actor) DO NOTHING
	`

	_, err := p.db.ExecContext(ctx, query,
		sessionID,
		offer.Round,
		offer.Actor,
		buyerRef,
		offer.Price,
		offer.Message,
		string(offer.Tactic),
		features,
		offer.ValidatorOverride,
		offer.CouponID,
		offer.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert offer event: %w", err)
	}

	p.logger.Debug("offer-event-stored",
		zap.String("session-id", sessionID),
		zap.Int("round", offer.Round),
		zap.String("actor", offer.Actor))

	return nil
}

// OfferEvents returns the session's offers in round order, buyer before
// seller within a round.
func (p *PostgresStorage) OfferEvents(ctx context.Context, sessionID string) ([]types.Offer, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	query := `
		SELECT round, actor, price, message, tactic, features,
		       validator_override, coupon_id, created_at
		FROM offer_events
		WHERE session_id = $1
		ORDER BY round, actor
	`

	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query offer events: %w", err)
	}
	defer rows.Close()

	var offers []types.Offer
	for rows.Next() {
		var (
			o        types.Offer
			tactic   string
			features []byte
		)

		err = rows.Scan(&o.Round, &o.Actor, &o.Price, &o.Message, &tactic,
			&features, &o.ValidatorOverride, &o.CouponID, &o.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan offer event: %w", err)
		}

		o.Tactic = types.Tactic(tactic)
		if len(features) > 0 {
			err = json.Unmarshal(features, &o.Features)
			if err != nil {
				return nil, fmt.Errorf("unmarshal offer features: %w", err)
			}
		}

		offers = append(offers, o)
	}

	return offers, rows.Err()
}

// UpsertSummary writes the session summary without downgrading a stored
// terminal state.
func (p *PostgresStorage) UpsertSummary(ctx context.Context, summary *types.SessionSummary) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	var closedAt sql.NullTime
	if !summary.ClosedAt.IsZero() {
		closedAt = sql.NullTime{Time: summary.ClosedAt, Valid: true}
	}

	query := `
		INSERT INTO session_summaries (
			session_id, product_id, buyer_ref, token_hash, state, tactic, rounds,
			anchor_price, final_price, agreed_price, bot_score, degraded,
			created_at, closed_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id) DO UPDATE SET
			state        = EXCLUDED.state,
			tactic       = EXCLUDED.tactic,
			rounds       = EXCLUDED.rounds,
			final_price  = EXCLUDED.final_price,
			agreed_price = EXCLUDED.agreed_price,
			bot_score    = EXCLUDED.bot_score,
			degraded     = EXCLUDED.degraded,
			closed_at    = EXCLUDED.closed_at
		WHERE session_summaries.state NOT IN ('agreed', 'broken', 'timed_out')
	`

	_, err := p.db.ExecContext(ctx, query,
		summary.SessionID,
		summary.ProductID,
		summary.BuyerRef,
		summary.TokenHash,
		string(summary.State),
		string(summary.Tactic),
		summary.Rounds,
		summary.AnchorPrice,
		summary.FinalPrice,
		summary.AgreedPrice,
		summary.BotScore,
		summary.Degraded,
		summary.CreatedAt,
		closedAt,
		summary.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session summary: %w", err)
	}

	return nil
}

// Summary returns the session summary, or ErrNotFound.
func (p *PostgresStorage) Summary(ctx context.Context, sessionID string) (*types.SessionSummary, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	query := `
		SELECT session_id, product_id, buyer_ref, token_hash, state, tactic, rounds,
		       anchor_price, final_price, agreed_price, bot_score, degraded,
		       created_at, closed_at, expires_at
		FROM session_summaries
		WHERE session_id = $1
	`

	row := p.db.QueryRowContext(ctx, query, sessionID)

	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session summary: %w", err)
	}

	return s, nil
}

// ExpiredActiveSessions lists non-terminal sessions whose expiry passed.
func (p *PostgresStorage) ExpiredActiveSessions(ctx context.Context, before time.Time, limit int) ([]types.SessionSummary, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	query := `
		SELECT session_id, product_id, buyer_ref, token_hash, state, tactic, rounds,
		       anchor_price, final_price, agreed_price, bot_score, degraded,
		       created_at, closed_at, expires_at
		FROM session_summaries
		WHERE state NOT IN ('agreed', 'broken', 'timed_out') AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := p.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var out []types.SessionSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		out = append(out, *s)
	}

	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*types.SessionSummary, error) {
	var (
		s        types.SessionSummary
		state    string
		tactic   string
		closedAt sql.NullTime
	)

	err := row.Scan(&s.SessionID, &s.ProductID, &s.BuyerRef, &s.TokenHash,
		&state, &tactic, &s.Rounds, &s.AnchorPrice, &s.FinalPrice,
		&s.AgreedPrice, &s.BotScore, &s.Degraded, &s.CreatedAt, &closedAt,
		&s.ExpiresAt)
	if err != nil {
		return nil, err
	}

	s.State = types.SessionState(state)
	s.Tactic = types.Tactic(tactic)
	if closedAt.Valid {
		s.ClosedAt = closedAt.Time
	}

	return &s, nil
}

// CreateProduct inserts a catalog product.
func (p *PostgresStorage) CreateProduct(ctx context.Context, prod *types.Product) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	metadata, err := marshalMetadata(prod.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (
			id, name, category, anchor_price, cost_price, min_margin,
			target_margin, metadata, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = p.db.ExecContext(ctx, query,
		prod.ID, prod.Name, prod.Category, prod.AnchorPrice, prod.CostPrice,
		prod.MinMargin, prod.TargetMargin, metadata, prod.Active,
		prod.CreatedAt, prod.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// UpdateProduct rewrites a catalog product.
func (p *PostgresStorage) UpdateProduct(ctx context.Context, prod *types.Product) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	metadata, err := marshalMetadata(prod.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE products SET
			name = $2, category = $3, anchor_price = $4, cost_price = $5,
			min_margin = $6, target_margin = $7, metadata = $8, active = $9,
			updated_at = $10
		WHERE id = $1
	`

	res, err := p.db.ExecContext(ctx, query,
		prod.ID, prod.Name, prod.Category, prod.AnchorPrice, prod.CostPrice,
		prod.MinMargin, prod.TargetMargin, metadata, prod.Active, prod.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

// GetProduct returns a product by id, or ErrNotFound.
func (p *PostgresStorage) GetProduct(ctx context.Context, id string) (*types.Product, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	query := `
		SELECT id, name, category, anchor_price, cost_price, min_margin,
		       target_margin, metadata, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	prod, err := scanProduct(p.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	return prod, nil
}

// ListProducts returns catalog products, optionally active only.
func (p *PostgresStorage) ListProducts(ctx context.Context, activeOnly bool) ([]types.Product, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	query := `
		SELECT id, name, category, anchor_price, cost_price, min_margin,
		       target_margin, metadata, active, created_at, updated_at
		FROM products
	`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []types.Product
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *prod)
	}

	return out, rows.Err()
}

// DeactivateProduct marks a product inactive; sessions already playing it
// finish normally.
func (p *PostgresStorage) DeactivateProduct(ctx context.Context, id string) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	res, err := p.db.ExecContext(ctx,
		`UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func scanProduct(row rowScanner) (*types.Product, error) {
	var (
		prod     types.Product
		metadata []byte
	)

	err := row.Scan(&prod.ID, &prod.Name, &prod.Category, &prod.AnchorPrice,
		&prod.CostPrice, &prod.MinMargin, &prod.TargetMargin, &metadata,
		&prod.Active, &prod.CreatedAt, &prod.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		err = json.Unmarshal(metadata, &prod.Metadata)
		if err != nil {
			return nil, fmt.Errorf("unmarshal product metadata: %w", err)
		}
	}

	return &prod, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal product metadata: %w", err)
	}

	return raw, nil
}

// CreateCoupon inserts a promotion row.
func (p *PostgresStorage) CreateCoupon(ctx context.Context, c *types.Coupon) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	query := `
		INSERT INTO coupons (
			id, code, category, min_price, min_round, discount_pct,
			max_discount, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.db.ExecContext(ctx, query,
		c.ID, c.Code, c.Category, c.MinPrice, c.MinRound, c.DiscountPct,
		c.MaxDiscount, c.Active, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}

	return nil
}

// ListCoupons returns the coupon catalog in creation order.
func (p *PostgresStorage) ListCoupons(ctx context.Context, activeOnly bool) ([]types.Coupon, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	query := `
		SELECT id, code, category, min_price, min_round, discount_pct,
		       max_discount, active, created_at
		FROM coupons
	`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query coupons: %w", err)
	}
	defer rows.Close()

	var out []types.Coupon
	for rows.Next() {
		var c types.Coupon

		err = rows.Scan(&c.ID, &c.Code, &c.Category, &c.MinPrice, &c.MinRound,
			&c.DiscountPct, &c.MaxDiscount, &c.Active, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

// Ping verifies the database connection.
func (p *PostgresStorage) Ping(ctx context.Context) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
