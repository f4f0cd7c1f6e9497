// Package metatx implements the meta-transaction gateway: it verifies that a
// request was signed by the identity it claims, consults the configured
// replay-protection policy and commits the accepted request atomically.
package metatx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"metagate/core/digest"
	coreerrors "metagate/core/errors"
	"metagate/core/events"
	"metagate/core/replay"
	"metagate/core/state"
	"metagate/crypto"
	"metagate/observability/metrics"
	"metagate/storage"
)

const (
	operationSubmit  = "submit"
	operationApprove = "approve"
	outcomeAccepted  = "accepted"
)

// Request is a signed broadcast submitted by a relayer. Partition and Value
// are (bucket, flip value) for bitmap policies and (channel, next sequence)
// for sequence policies.
type Request struct {
	// Target optionally names the gateway the request was built for. When set
	// it must equal the gateway's own target.
	Target    common.Address
	Message   string
	Signer    common.Address
	Partition *uint256.Int
	Value     *uint256.Int
	Signature []byte
}

// Receipt describes an accepted request.
type Receipt struct {
	Digest    common.Hash
	Command   common.Hash
	Signer    common.Address
	Policy    replay.Policy
	Partition *uint256.Int
	Value     *uint256.Int
}

// Gateway is bound to one target and one replay policy for its lifetime.
type Gateway struct {
	target    common.Address
	protector replay.Protector
	db        storage.Database

	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.MetaTxMetrics
	tracer  trace.Tracer
	clock   func() time.Time

	mu sync.Mutex
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithEmitter sets the destination of broadcast events.
func WithEmitter(emitter events.Emitter) Option {
	return func(g *Gateway) {
		if emitter != nil {
			g.emitter = emitter
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. A nil sink disables metrics.
func WithMetrics(m *metrics.MetaTxMetrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithTracer overrides the tracer used for submission spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Gateway) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// New constructs a gateway for target that protects requests with protector
// and stores ledger records in db.
func New(target common.Address, protector replay.Protector, db storage.Database, opts ...Option) (*Gateway, error) {
	if target == (common.Address{}) {
		return nil, fmt.Errorf("metatx: target must not be the zero address")
	}
	if protector == nil {
		return nil, fmt.Errorf("metatx: replay protector required")
	}
	if db == nil {
		return nil, fmt.Errorf("metatx: database required")
	}
	g := &Gateway{
		target:    target,
		protector: protector,
		db:        db,
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("metagate/metatx"),
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Target returns the gateway's fixed target identity.
func (g *Gateway) Target() common.Address { return g.target }

// Policy returns the gateway's replay policy.
func (g *Gateway) Policy() replay.Policy { return g.protector.Policy() }

// Digest returns the digest a signer must sign to authorize command with the
// given policy fields on this gateway.
func (g *Gateway) Digest(command common.Hash, partition, value *uint256.Int) common.Hash {
	return digest.Hash(g.target, g.protector.Policy().Tag(), command, partition, value)
}

// MessageDigest returns the digest authorizing a broadcast of message.
func (g *Gateway) MessageDigest(message string, partition, value *uint256.Int) common.Hash {
	return g.Digest(digest.CommandHash(message), partition, value)
}

// Submit verifies and applies a signed broadcast. On success exactly one
// ledger mutation is committed and exactly one Broadcast event is emitted; on
// failure neither happens.
func (g *Gateway) Submit(ctx context.Context, req Request) (*Receipt, error) {
	start := g.clock()
	ctx, span := g.tracer.Start(ctx, "metatx.submit", trace.WithAttributes(
		attribute.String("policy", string(g.Policy())),
		attribute.String("signer", req.Signer.Hex()),
	))
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	receipt, err := g.submitLocked(req)
	g.finish(ctx, span, operationSubmit, req.Signer, start, err)
	return receipt, err
}

func (g *Gateway) submitLocked(req Request) (*Receipt, error) {
	if req.Target != (common.Address{}) && req.Target != g.target {
		return nil, fmt.Errorf("%w: request for %s, gateway is %s", coreerrors.ErrTargetMismatch, req.Target.Hex(), g.target.Hex())
	}
	command := digest.CommandHash(req.Message)
	receipt, err := g.apply(command, req.Signer, replay.Fields{Partition: req.Partition, Value: req.Value}, req.Signature)
	if err != nil {
		return nil, err
	}
	g.emit(events.Broadcast{
		Message:   req.Message,
		Signer:    receipt.Signer,
		Target:    g.target,
		Policy:    string(receipt.Policy),
		Partition: receipt.Partition,
		Value:     receipt.Value,
		Digest:    receipt.Digest,
	})
	return receipt, nil
}

// Approve verifies and records a raw approval of command without emitting an
// event. It consumes the same replay state as Submit.
func (g *Gateway) Approve(ctx context.Context, command common.Hash, signer common.Address, fields replay.Fields, sig []byte) (*Receipt, error) {
	start := g.clock()
	ctx, span := g.tracer.Start(ctx, "metatx.approve", trace.WithAttributes(
		attribute.String("policy", string(g.Policy())),
		attribute.String("signer", signer.Hex()),
	))
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	receipt, err := g.apply(command, signer, fields, sig)
	g.finish(ctx, span, operationApprove, signer, start, err)
	return receipt, err
}

// apply runs digest, recovery, signer comparison and policy approval against
// a journal, then commits the journal as one batch. Callers hold g.mu.
func (g *Gateway) apply(command common.Hash, claimed common.Address, fields replay.Fields, sig []byte) (*Receipt, error) {
	partition := orZero(fields.Partition)
	value := orZero(fields.Value)
	hash := g.Digest(command, partition, value)

	recovered, err := crypto.Recover(hash, sig)
	if err != nil {
		return nil, err
	}
	if recovered == (common.Address{}) || recovered != claimed {
		return nil, fmt.Errorf("%w: claimed %s, recovered %s", coreerrors.ErrSignerMismatch, claimed.Hex(), recovered.Hex())
	}

	journal := state.NewJournal(g.db)
	ledger := state.NewLedger(journal)
	if err := g.protector.Approve(ledger, claimed, replay.Fields{Partition: partition, Value: value}); err != nil {
		return nil, err
	}
	if err := g.db.Write(journal.Batch()); err != nil {
		return nil, fmt.Errorf("commit ledger: %w", err)
	}
	return &Receipt{
		Digest:    hash,
		Command:   command,
		Signer:    claimed,
		Policy:    g.protector.Policy(),
		Partition: new(uint256.Int).Set(partition),
		Value:     new(uint256.Int).Set(value),
	}, nil
}

func (g *Gateway) emit(e events.Broadcast) {
	g.emitter.Emit(e)
	g.metrics.RecordEvent(e.EventType())
}

func (g *Gateway) finish(ctx context.Context, span trace.Span, operation string, signer common.Address, start time.Time, err error) {
	outcome := outcomeAccepted
	if err != nil {
		outcome = coreerrors.Code(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	g.metrics.Observe(string(g.Policy()), operation, outcome, g.clock().Sub(start))

	attrs := []any{
		slog.String("operation", operation),
		slog.String("policy", string(g.Policy())),
		slog.String("signer", crypto.AddressFromIdentity(signer).String()),
	}
	switch {
	case err == nil:
		g.logger.InfoContext(ctx, "meta-transaction accepted", attrs...)
	case coreerrors.IsRejection(err):
		g.logger.DebugContext(ctx, "meta-transaction rejected", append(attrs, slog.String("code", outcome), slog.String("error", err.Error()))...)
	default:
		g.logger.ErrorContext(ctx, "meta-transaction failed", append(attrs, slog.String("error", err.Error()))...)
	}
}

// IsBitmapSet reports whether every bit of value is recorded for (id, bucket).
// It returns ErrQueryUnsupported for sequence policies.
func (g *Gateway) IsBitmapSet(id common.Address, bucket, value *uint256.Int) (bool, error) {
	q, ok := g.protector.(replay.BitmapQuerier)
	if !ok {
		return false, unsupported("isBitmapSet", g.Policy())
	}
	return q.IsBitmapSet(state.NewLedger(g.db), id, bucket, value)
}

// GetNonce returns the last accepted sequence for (id, channel). It returns
// ErrQueryUnsupported for bitmap policies.
func (g *Gateway) GetNonce(id common.Address, channel *uint256.Int) (*uint256.Int, error) {
	q, ok := g.protector.(replay.SequenceQuerier)
	if !ok {
		return nil, unsupported("getNonce", g.Policy())
	}
	return q.GetNonce(state.NewLedger(g.db), id, channel)
}

// CurrentBucket returns the window position for id under the windowed policy.
func (g *Gateway) CurrentBucket(id common.Address) (*uint256.Int, error) {
	q, ok := g.protector.(replay.WindowQuerier)
	if !ok {
		return nil, unsupported("currentBucket", g.Policy())
	}
	return q.CurrentBucket(state.NewLedger(g.db), id)
}

// StateRoot returns the commitment over every stored ledger record.
func (g *Gateway) StateRoot() (common.Hash, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	root, err := state.Root(g.db)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return common.Hash{}, fmt.Errorf("compute state root: %w", err)
	}
	return root, nil
}

func unsupported(query string, policy replay.Policy) error {
	return fmt.Errorf("%w: %s under policy %s", coreerrors.ErrQueryUnsupported, query, policy)
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
