package negotiation

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/internal/catalog"
	"github.com/molbhav/molbhav/internal/coupon"
	"github.com/molbhav/molbhav/internal/dialogue"
	"github.com/molbhav/molbhav/internal/hotstore"
	"github.com/molbhav/molbhav/internal/pricing"
	"github.com/molbhav/molbhav/internal/quote"
	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/types"
)

const (
	// rateWindow is the per-IP start-rate window.
	rateWindow = time.Minute

	// persistAttempts is the total number of tries for a durable write.
	persistAttempts = 3
)

// persistBackoff is the delay before each durable retry.
var persistBackoff = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}

// Publisher receives one event per processed offer. Implementations must not
// block; the feed is advisory.
type Publisher interface {
	Publish(ev types.OfferEvent)
}

// Service orchestrates negotiation sessions: locking and persistence around
// the state machine, dialogue rendering, coupons and quotes.
type Service struct {
	machine  *Machine
	hot      hotstore.Store
	durable  storage.Storage
	catalog  *catalog.Service
	coupons  *coupon.Service
	dialogue *dialogue.Generator
	quotes   *quote.Builder
	feed     Publisher
	logger   *zap.Logger

	sessionTTL     time.Duration
	cooldown       time.Duration
	lockLease      time.Duration
	durableTimeout time.Duration
	startRateLimit int64
	defaultBeta    float64
	defaultAlpha   float64
	maxRounds      int
	quoteTTL       int
	production     bool

	now func() time.Time
}

// Config holds negotiation service configuration.
type Config struct {
	Machine  *Machine
	Hot      hotstore.Store
	Durable  storage.Storage
	Catalog  *catalog.Service
	Coupons  *coupon.Service
	Dialogue *dialogue.Generator
	Quotes   *quote.Builder
	Feed     Publisher // nil disables the event feed
	Logger   *zap.Logger

	SessionTTL     time.Duration
	Cooldown       time.Duration
	LockLease      time.Duration // bounds how long a crashed request holds a session
	DurableTimeout time.Duration
	StartRateLimit int64
	DefaultBeta    float64
	DefaultAlpha   float64
	MaxRounds      int
	QuoteTTL       int
	Production     bool
}

// NewService creates the negotiation service.
func NewService(cfg *Config) (*Service, error) {
	if cfg.Machine == nil {
		return nil, fmt.Errorf("machine cannot be nil")
	}
	if cfg.Hot == nil {
		return nil, fmt.Errorf("hot store cannot be nil")
	}
	if cfg.Durable == nil {
		return nil, fmt.Errorf("durable storage cannot be nil")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if cfg.Coupons == nil {
		return nil, fmt.Errorf("coupon service cannot be nil")
	}
	if cfg.Dialogue == nil {
		return nil, fmt.Errorf("dialogue generator cannot be nil")
	}
	if cfg.Quotes == nil {
		return nil, fmt.Errorf("quote builder cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	s := &Service{
		machine:        cfg.Machine,
		hot:            cfg.Hot,
		durable:        cfg.Durable,
		catalog:        cfg.Catalog,
		coupons:        cfg.Coupons,
		dialogue:       cfg.Dialogue,
		quotes:         cfg.Quotes,
		feed:           cfg.Feed,
		logger:         cfg.Logger,
		sessionTTL:     cfg.SessionTTL,
		cooldown:       cfg.Cooldown,
		lockLease:      cfg.LockLease,
		durableTimeout: cfg.DurableTimeout,
		startRateLimit: cfg.StartRateLimit,
		defaultBeta:    cfg.DefaultBeta,
		defaultAlpha:   cfg.DefaultAlpha,
		maxRounds:      cfg.MaxRounds,
		quoteTTL:       cfg.QuoteTTL,
		production:     cfg.Production,
		now:            time.Now,
	}

	if s.sessionTTL <= 0 {
		s.sessionTTL = 300 * time.Second
	}
	if s.cooldown <= 0 {
		s.cooldown = 2 * time.Second
	}
	if s.lockLease <= 0 {
		s.lockLease = 5 * time.Second
	}
	if s.durableTimeout <= 0 {
		s.durableTimeout = 500 * time.Millisecond
	}
	if s.startRateLimit <= 0 {
		s.startRateLimit = 30
	}
	if s.defaultBeta <= 0 {
		s.defaultBeta = 5.0
	}
	if s.defaultAlpha <= 0 {
		s.defaultAlpha = 0.6
	}
	if s.maxRounds <= 0 {
		s.maxRounds = 15
	}
	if s.quoteTTL <= 0 {
		s.quoteTTL = 60
	}

	return s, nil
}

// SetNow overrides the clock for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// Start opens a negotiation session for a product. The caller's IP feeds the
// start-rate limiter; the returned response is the only one carrying the
// session token.
func (s *Service) Start(ctx context.Context, ip string, req *types.StartRequest) (*types.SessionResponse, error) {
	if !types.ProductIDPattern.MatchString(req.ProductID) {
		return nil, types.E(types.KindBadInput, "malformed product id")
	}

	language := req.Language
	if language == "" {
		language = "en"
	}
	if !types.SupportedLanguages[language] {
		return nil, types.E(types.KindBadInput, "unsupported language %q", language)
	}

	count, err := s.hot.IncrStartRate(ctx, ip, rateWindow)
	if err != nil {
		return nil, types.WrapE(types.KindDegraded, err, "start rate check")
	}
	if count > s.startRateLimit {
		rateLimitedTotal.Inc()
		return nil, types.E(types.KindRateLimited, "too many sessions started, slow down")
	}

	product, err := s.catalog.Get(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// A well-formed id naming nothing is a catalog fault, not a
			// caller fault.
			return nil, types.WrapE(types.KindInternal, err, "product %s not in catalog", req.ProductID)
		}

		return nil, types.WrapE(types.KindDegraded, err, "load product")
	}
	if !product.Active {
		return nil, types.E(types.KindBadInput, "product %s is not for sale", req.ProductID)
	}

	now := s.now()
	sess := &types.NegotiationSession{
		SessionID:       randomHex(16),
		SessionToken:    randomHex(32),
		ProductID:       product.ID,
		BuyerRef:        buyerRef(req.BuyerName),
		Language:        language,
		AnchorPrice:     product.AnchorPrice,
		FloorPrice:      pricing.FloorPrice(product.CostPrice, product.MinMargin),
		CurrentPrice:    product.AnchorPrice,
		Round:           0,
		MaxRounds:       s.maxRounds,
		State:           types.StateProposing,
		Tactic:          types.TacticOpeningAnchor,
		Sentiment:       types.SentimentNeutral,
		Beta:            s.defaultBeta,
		Alpha:           s.defaultAlpha,
		QuoteTTLSeconds: s.quoteTTL,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(s.sessionTTL),
	}

	res := s.dialogue.Generate(ctx, dialogue.Input{
		Session:  sess,
		Tactic:   types.TacticOpeningAnchor,
		Price:    sess.AnchorPrice,
		Language: language,
	})

	opening := types.Offer{
		Actor:     types.ActorSeller,
		Price:     sess.AnchorPrice,
		Message:   res.Message,
		Tactic:    types.TacticOpeningAnchor,
		Round:     0,
		Timestamp: now,
	}
	sess.Offers = append(sess.Offers, opening)

	if err := s.saveHot(ctx, sess); err != nil {
		return nil, types.WrapE(types.KindDegraded, err, "save session")
	}

	// The open summary row is what the reaper sweeps if the buyer vanishes.
	err = s.appendDurable(ctx, sess.SessionID, sess.BuyerRef, &opening)
	if err == nil {
		err = s.writeSummary(ctx, sess)
	}
	if err != nil {
		// The hot tier owns active play; a durable miss degrades the
		// session but does not kill it.
		sess.Degraded = true
		if hotErr := s.saveHot(ctx, sess); hotErr != nil {
			s.logger.Error("degraded-flag-save-failed",
				zap.String("session-id", sess.SessionID),
				zap.Error(hotErr))
		}

		s.logger.Warn("durable-append-failed-at-start",
			zap.String("session-id", sess.SessionID),
			zap.Error(err))
	}

	sessionsStartedTotal.Inc()
	s.publish(sess, types.ActorSeller)

	s.logger.Info("session-started",
		zap.String("session-id", sess.SessionID),
		zap.String("product-id", sess.ProductID),
		zap.String("language", language),
		zap.Float64("anchor", sess.AnchorPrice))

	resp := s.response(sess, res.Message, nil)
	resp.SessionToken = sess.SessionToken
	s.annotate(resp, res, nil, false, sess.Degraded)

	return resp, nil
}

// Offer plays one buyer offer against the session. Ordering within a session
// is enforced by the hot-tier lock; contending requests get busy immediately.
func (s *Service) Offer(ctx context.Context, sessionID, token string, req *types.OfferRequest) (*types.SessionResponse, error) {
	start := s.now()

	if !types.SessionIDPattern.MatchString(sessionID) {
		return nil, types.E(types.KindBadInput, "malformed session id")
	}
	if err := pricing.ValidateBuyerPrice(req.Price); err != nil {
		return nil, err
	}

	sess, err := s.loadHot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, hotstore.ErrNotFound) {
			// Absent session and wrong token are indistinguishable.
			subtle.ConstantTimeCompare([]byte(token), []byte(token))
			return nil, types.E(types.KindBadToken, "unknown session or bad token")
		}

		return nil, types.WrapE(types.KindDegraded, err, "load session")
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(sess.SessionToken)) != 1 {
		return nil, types.E(types.KindBadToken, "unknown session or bad token")
	}

	cooling, err := s.hot.InCooldown(ctx, sessionID)
	if err != nil {
		return nil, types.WrapE(types.KindDegraded, err, "cooldown check")
	}
	if cooling {
		return nil, types.E(types.KindCooldown, "catch your breath, the seller is still thinking")
	}

	lockToken, err := s.hot.AcquireLock(ctx, sessionID, s.lockLease)
	if err != nil {
		if errors.Is(err, hotstore.ErrLockHeld) {
			return nil, types.E(types.KindBusy, "another offer is in flight")
		}

		return nil, types.WrapE(types.KindDegraded, err, "acquire lock")
	}
	defer func() {
		if relErr := s.hot.ReleaseLock(ctx, sessionID, lockToken); relErr != nil {
			s.logger.Warn("lock-release-failed",
				zap.String("session-id", sessionID),
				zap.Error(relErr))
		}
	}()

	// Reload under the lock so the snapshot is the one we transition.
	sess, err = s.loadHot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, hotstore.ErrNotFound) {
			return nil, types.E(types.KindBadToken, "unknown session or bad token")
		}

		return nil, types.WrapE(types.KindDegraded, err, "load session")
	}

	if sess.State.IsTerminal() {
		return nil, types.E(types.KindSessionClosed, "session is %s", sess.State)
	}

	if sess.Expired(s.now()) {
		return s.finalizeTimeout(ctx, sess)
	}

	if req.Round != nil && *req.Round != sess.Round+1 {
		return nil, types.E(types.KindOutOfOrder,
			"round %d already played, next is %d", *req.Round, sess.Round+1)
	}

	resp, err := s.play(ctx, sess, req)

	offersTotal.WithLabelValues(outcome(resp, err)).Inc()
	offerDuration.Observe(s.now().Sub(start).Seconds())

	return resp, err
}

// play runs the decision pipeline on a locked, validated session.
func (s *Service) play(ctx context.Context, orig *types.NegotiationSession, req *types.OfferRequest) (*types.SessionResponse, error) {
	now := s.now()
	intent := dialogue.DetectExitIntent(req.Message)
	sentiment := intent.Sentiment()

	work := orig.Clone()
	work.Round++
	work.LastBuyerPrice = req.Price
	work.Sentiment = sentiment
	work.UpdatedAt = now
	if req.Language != "" && types.SupportedLanguages[req.Language] {
		work.Language = req.Language
	}

	buyerOffer := types.Offer{
		Actor:     types.ActorBuyer,
		Price:     req.Price,
		Message:   dialogue.SanitizeStoredMessage(req.Message),
		Round:     work.Round,
		Timestamp: now,
	}
	work.Offers = append(work.Offers, buyerOffer)

	decision, err := s.machine.Step(work, sentiment)
	if err != nil {
		return nil, err
	}

	work.State = decision.State
	work.Tactic = decision.Tactic
	work.CurrentPrice = decision.CounterPrice
	work.BotScore = decision.Bot.Score
	if decision.SetFlounce {
		work.FlounceUsed = true
	}
	if decision.AgreedPrice != nil {
		v := *decision.AgreedPrice
		work.AgreedPrice = &v
	}

	applied := s.applyCoupon(ctx, work, &decision)

	sellerOffer := types.Offer{
		Actor:     types.ActorSeller,
		Price:     work.CurrentPrice,
		Tactic:    work.Tactic,
		Round:     work.Round,
		Timestamp: now,
		Features: map[string]float64{
			"bot_score":   decision.Bot.Score,
			"curve_price": decision.CurvePrice,
			"reciprocity": decision.Reciprocity,
			"beta":        decision.BetaUsed,
		},
		ValidatorOverride: decision.Validation.Overridden,
		Bundle:            decision.Bundle,
	}
	if applied != nil {
		sellerOffer.CouponApplied = true
		sellerOffer.CouponID = applied.CouponID
	}

	rendered := s.dialogue.Generate(ctx, dialogue.Input{
		Session:      work,
		Tactic:       work.Tactic,
		Price:        work.CurrentPrice,
		BuyerMessage: req.Message,
		Language:     work.Language,
		Bundle:       decision.Bundle,
	})
	sellerOffer.Message = rendered.Message
	work.Offers = append(work.Offers, sellerOffer)

	var q *types.Quote
	if work.State == types.StateAgreed {
		q, err = s.quotes.Build(work)
		if err != nil {
			return nil, types.WrapE(types.KindInternal, err, "build quote")
		}
	}

	if err := s.persistTurn(ctx, orig, work, &buyerOffer, &sellerOffer); err != nil {
		return nil, err
	}

	if err := s.hot.SetCooldown(ctx, work.SessionID, s.cooldown); err != nil {
		s.logger.Warn("cooldown-set-failed",
			zap.String("session-id", work.SessionID),
			zap.Error(err))
	}

	s.publish(work, types.ActorSeller)

	s.logger.Info("offer-played",
		zap.String("session-id", work.SessionID),
		zap.Int("round", work.Round),
		zap.String("state", string(work.State)),
		zap.String("tactic", string(work.Tactic)),
		zap.Float64("buyer-price", req.Price),
		zap.Float64("counter-price", work.CurrentPrice),
		zap.Float64("bot-score", work.BotScore))

	resp := s.response(work, rendered.Message, q)
	s.annotate(resp, rendered, applied, decision.Validation.Overridden, work.Degraded)
	if decision.Bundle != nil {
		resp.Metadata[types.MetaBundle] = decision.Bundle
	}

	return resp, nil
}

// applyCoupon folds at most one invisible promotion into a concession-family
// counter. Guardrail-overridden rounds and agreed prices never take coupons.
func (s *Service) applyCoupon(ctx context.Context, work *types.NegotiationSession, d *Decision) *coupon.Applied {
	if work.Tactic != types.TacticConcession && work.Tactic != types.TacticWalkAwaySave {
		return nil
	}
	if d.Validation.Overridden || len(work.CouponsApplied) > 0 {
		return nil
	}

	product, err := s.catalog.Get(ctx, work.ProductID)
	if err != nil {
		s.logger.Warn("coupon-product-lookup-failed",
			zap.String("session-id", work.SessionID),
			zap.Error(err))
		return nil
	}

	applied, err := s.coupons.Find(ctx, product.Category, work.CurrentPrice, work.FloorPrice, work.Round)
	if err != nil {
		s.logger.Warn("coupon-lookup-failed",
			zap.String("session-id", work.SessionID),
			zap.Error(err))
		return nil
	}
	if applied == nil {
		return nil
	}

	work.CurrentPrice = applied.NewPrice
	work.CouponsApplied = append(work.CouponsApplied, applied.CouponID)
	couponsAppliedTotal.Inc()

	return applied
}

// persistTurn writes the turn durably and refreshes the hot snapshot. On
// durable exhaustion the pre-offer snapshot is restored with the degraded
// flag set, so no round is consumed.
func (s *Service) persistTurn(ctx context.Context, orig, work *types.NegotiationSession, offers ...*types.Offer) error {
	for _, o := range offers {
		if err := s.appendDurable(ctx, work.SessionID, work.BuyerRef, o); err != nil {
			return s.rollback(ctx, orig, err)
		}
	}

	if work.State.IsTerminal() {
		if err := s.writeSummary(ctx, work); err != nil {
			return s.rollback(ctx, orig, err)
		}

		sessionsClosedTotal.WithLabelValues(string(work.State)).Inc()
	}

	if err := s.saveHot(ctx, work); err != nil {
		return s.rollback(ctx, orig, err)
	}

	return nil
}

func (s *Service) rollback(ctx context.Context, orig *types.NegotiationSession, cause error) error {
	orig.Degraded = true
	if err := s.saveHot(ctx, orig); err != nil {
		s.logger.Error("rollback-save-failed",
			zap.String("session-id", orig.SessionID),
			zap.Error(err))
	}

	degradedTotal.Inc()
	s.logger.Error("turn-persist-failed",
		zap.String("session-id", orig.SessionID),
		zap.Int("round", orig.Round),
		zap.Error(cause))

	return types.WrapE(types.KindDegraded, cause, "could not persist turn, round not consumed")
}

// Status returns the session view without mutating anything. Expired sessions
// read as timed out; when the hot entry is gone the durable summary answers.
func (s *Service) Status(ctx context.Context, sessionID, token string) (*types.SessionResponse, error) {
	if !types.SessionIDPattern.MatchString(sessionID) {
		return nil, types.E(types.KindBadInput, "malformed session id")
	}

	sess, err := s.loadHot(ctx, sessionID)
	if err == nil {
		if subtle.ConstantTimeCompare([]byte(token), []byte(sess.SessionToken)) != 1 {
			return nil, types.E(types.KindBadToken, "unknown session or bad token")
		}

		if sess.Expired(s.now()) && !sess.State.IsTerminal() {
			sess.State = types.StateTimedOut
			sess.Tactic = types.TacticTimeout
		}

		var message string
		if last := sess.LastOffer(types.ActorSeller); last != nil {
			message = last.Message
		}

		return s.response(sess, message, nil), nil
	}
	if !errors.Is(err, hotstore.ErrNotFound) {
		return nil, types.WrapE(types.KindDegraded, err, "load session")
	}

	summary, err := s.loadSummary(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.E(types.KindNoSession, "no such session")
		}

		return nil, types.WrapE(types.KindDegraded, err, "load summary")
	}

	// The summary answers for expired hot entries, under the same token
	// gate as the live path.
	if subtle.ConstantTimeCompare([]byte(hashToken(token)), []byte(summary.TokenHash)) != 1 {
		return nil, types.E(types.KindBadToken, "unknown session or bad token")
	}

	resp := &types.SessionResponse{
		SessionID:    summary.SessionID,
		State:        summary.State,
		Tactic:       summary.Tactic,
		Sentiment:    types.SentimentNeutral,
		Round:        summary.Rounds,
		MaxRounds:    s.maxRounds,
		CurrentPrice: summary.FinalPrice,
		AnchorPrice:  summary.AnchorPrice,
		AgreedPrice:  summary.AgreedPrice,
	}

	return resp, nil
}

// History returns the durable audit trail for a session (admin surface).
func (s *Service) History(ctx context.Context, sessionID string) ([]types.Offer, *types.SessionSummary, error) {
	if !types.SessionIDPattern.MatchString(sessionID) {
		return nil, nil, types.E(types.KindBadInput, "malformed session id")
	}

	dctx, cancel := context.WithTimeout(ctx, s.durableTimeout)
	defer cancel()

	events, err := s.durable.OfferEvents(dctx, sessionID)
	if err != nil {
		return nil, nil, types.WrapE(types.KindDegraded, err, "load offer events")
	}
	if len(events) == 0 {
		return nil, nil, types.E(types.KindNoSession, "no such session")
	}

	summary, err := s.loadSummary(ctx, sessionID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, types.WrapE(types.KindDegraded, err, "load summary")
	}

	return events, summary, nil
}

// finalizeTimeout applies the TTL-expiry transition to a locked session.
func (s *Service) finalizeTimeout(ctx context.Context, sess *types.NegotiationSession) (*types.SessionResponse, error) {
	d := s.machine.Timeout(sess)
	sess.State = d.State
	sess.Tactic = d.Tactic
	sess.UpdatedAt = s.now()

	message := dialogue.Template(types.TacticTimeout, sess.CurrentPrice, sess.Language)

	if err := s.writeSummary(ctx, sess); err != nil {
		s.logger.Error("timeout-summary-failed",
			zap.String("session-id", sess.SessionID),
			zap.Error(err))
	}
	if err := s.saveHot(ctx, sess); err != nil {
		s.logger.Warn("timeout-hot-save-failed",
			zap.String("session-id", sess.SessionID),
			zap.Error(err))
	}

	sessionsClosedTotal.WithLabelValues(string(types.StateTimedOut)).Inc()
	s.publish(sess, types.ActorSeller)

	return s.response(sess, message, nil), nil
}

func (s *Service) writeSummary(ctx context.Context, sess *types.NegotiationSession) error {
	summary := &types.SessionSummary{
		SessionID:   sess.SessionID,
		ProductID:   sess.ProductID,
		BuyerRef:    sess.BuyerRef,
		TokenHash:   hashToken(sess.SessionToken),
		State:       sess.State,
		Tactic:      sess.Tactic,
		Rounds:      sess.Round,
		AnchorPrice: sess.AnchorPrice,
		FinalPrice:  sess.CurrentPrice,
		AgreedPrice: sess.AgreedPrice,
		BotScore:    sess.BotScore,
		Degraded:    sess.Degraded,
		CreatedAt:   sess.CreatedAt,
		ExpiresAt:   sess.ExpiresAt,
	}
	if sess.State.IsTerminal() {
		summary.ClosedAt = s.now()
	}

	return s.withDurableRetry(ctx, func(dctx context.Context) error {
		return s.durable.UpsertSummary(dctx, summary)
	})
}

func (s *Service) appendDurable(ctx context.Context, sessionID, buyerRef string, offer *types.Offer) error {
	return s.withDurableRetry(ctx, func(dctx context.Context) error {
		return s.durable.AppendOfferEvent(dctx, sessionID, buyerRef, offer)
	})
}

// withDurableRetry runs a durable write under the configured deadline,
// retrying transient failures with bounded backoff. Idempotent writes make
// replays safe.
func (s *Service) withDurableRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < persistAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(persistBackoff[attempt-1]):
			}
		}

		dctx, cancel := context.WithTimeout(ctx, s.durableTimeout)
		err = fn(dctx)
		cancel()

		if err == nil {
			return nil
		}
	}

	return err
}

func (s *Service) loadHot(ctx context.Context, sessionID string) (*types.NegotiationSession, error) {
	raw, err := s.hot.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var sess types.NegotiationSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}

	return &sess, nil
}

func (s *Service) saveHot(ctx context.Context, sess *types.NegotiationSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.SessionID, err)
	}

	return s.hot.SaveSession(ctx, sess.SessionID, raw, s.sessionTTL)
}

func (s *Service) loadSummary(ctx context.Context, sessionID string) (*types.SessionSummary, error) {
	dctx, cancel := context.WithTimeout(ctx, s.durableTimeout)
	defer cancel()

	return s.durable.Summary(dctx, sessionID)
}

func (s *Service) publish(sess *types.NegotiationSession, actor string) {
	if s.feed == nil {
		return
	}

	s.feed.Publish(types.OfferEvent{
		SessionID: sess.SessionID,
		ProductID: sess.ProductID,
		Round:     sess.Round,
		Actor:     actor,
		State:     sess.State,
		Tactic:    sess.Tactic,
		Timestamp: s.now(),
	})
}

func (s *Service) response(sess *types.NegotiationSession, message string, q *types.Quote) *types.SessionResponse {
	resp := &types.SessionResponse{
		SessionID:       sess.SessionID,
		Message:         message,
		CurrentPrice:    sess.CurrentPrice,
		AnchorPrice:     sess.AnchorPrice,
		State:           sess.State,
		Tactic:          sess.Tactic,
		Sentiment:       sess.Sentiment,
		Round:           sess.Round,
		MaxRounds:       sess.MaxRounds,
		QuoteTTLSeconds: sess.QuoteTTLSeconds,
		AgreedPrice:     sess.AgreedPrice,
		Metadata:        map[string]any{},
	}

	if q != nil {
		resp.Metadata[types.MetaQuote] = q
	}

	return resp
}

// annotate attaches the per-turn metadata flags to a response.
func (s *Service) annotate(resp *types.SessionResponse, rendered dialogue.Result, applied *coupon.Applied, overridden, degraded bool) {
	if overridden {
		resp.Metadata[types.MetaValidatorOverride] = true
		validatorOverridesTotal.Inc()
	}
	if rendered.Fallback {
		resp.Metadata[types.MetaDialogueFallback] = true
	}
	if rendered.Redacted {
		resp.Metadata[types.MetaMessageRedacted] = true
	}
	if applied != nil {
		resp.Metadata[types.MetaCouponApplied] = true
	}
	if degraded {
		resp.Metadata[types.MetaDegraded] = true
	}
	if !s.production && rendered.Reasoning != "" {
		resp.Metadata[types.MetaReasoning] = rendered.Reasoning
	}
}

func buyerRef(name string) string {
	if name == "" {
		return "guest"
	}
	if len(name) > 100 {
		name = name[:100]
	}

	return name
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has no usable entropy.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}

	return hex.EncodeToString(buf)
}

// hashToken digests the session token for durable rows; the clear token
// never leaves the hot tier.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

func outcome(resp *types.SessionResponse, err error) string {
	if err != nil {
		return string(types.KindOf(err))
	}

	return string(resp.State)
}
