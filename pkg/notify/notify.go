// Package notify distributes change events between instances via NATS and
// keeps a summary of each published standing in a JetStream KV bucket.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/model"
)

const DefaultBucket = "rsm_standings"

type (
	// Invalidator is the part of the scoring service reacting on change events
	Invalidator interface {
		Invalidate(ctx context.Context, seriesID int) error
		InvalidateScoringSystem(ctx context.Context, systemID int) ([]int, error)
		RecomputeAll(ctx context.Context, seriesIDs []int) error
	}

	Notifier struct {
		ctx       context.Context
		conn      *nats.Conn
		kv        jetstream.KeyValue
		bucket    string
		ttl       time.Duration
		recompute bool
		subs      []*nats.Subscription
		l         *log.Logger
	}
	Option func(*Notifier)
)

func WithContext(ctx context.Context) Option {
	return func(n *Notifier) {
		n.ctx = ctx
	}
}

func WithLogger(l *log.Logger) Option {
	return func(n *Notifier) {
		n.l = l
	}
}

// WithBucket sets the name and entry TTL of the summary bucket.
// A ttl of 0 keeps entries forever.
func WithBucket(name string, ttl time.Duration) Option {
	return func(n *Notifier) {
		n.bucket = name
		n.ttl = ttl
	}
}

// WithEagerRecompute recomputes affected series right after invalidating them
func WithEagerRecompute(b bool) Option {
	return func(n *Notifier) {
		n.recompute = b
	}
}

// NewNotifier creates a Notifier. A nil conn yields a Notifier that
// silently drops everything.
func NewNotifier(conn *nats.Conn, opts ...Option) (*Notifier, error) {
	ret := &Notifier{
		ctx:    context.Background(),
		conn:   conn,
		bucket: DefaultBucket,
		l:      log.Default().Named("notify"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if conn == nil {
		return ret, nil
	}
	if err := ret.setupKV(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (n *Notifier) setupKV() error {
	js, err := jetstream.New(n.conn)
	if err != nil {
		return err
	}
	n.kv, err = js.CreateOrUpdateKeyValue(n.ctx, jetstream.KeyValueConfig{
		Bucket: n.bucket,
		TTL:    n.ttl,
	})
	return err
}

func (n *Notifier) Close() {
	for _, s := range n.subs {
		//nolint:errcheck // by design
		s.Unsubscribe()
	}
	n.subs = nil
}

func (n *Notifier) PublishSeriesChanged(seriesID int, reason string) error {
	return n.publish(SubjectSeriesChanged, seriesID, reason)
}

func (n *Notifier) PublishScoringSystemChanged(systemID int, reason string) error {
	return n.publish(SubjectScoringSystemChanged, systemID, reason)
}

func (n *Notifier) publish(subject string, id int, reason string) error {
	if n.conn == nil {
		return nil
	}
	data, err := jsonTransfer[ChangeEvent]{}.ToBinary(
		&ChangeEvent{ID: id, Reason: reason, At: time.Now()})
	if err != nil {
		return err
	}
	n.l.Debug("publishing change", log.String("subject", subject), log.Int("id", id))
	return n.conn.Publish(subject, data)
}

// Subscribe forwards change events of all instances to target
func (n *Notifier) Subscribe(target Invalidator) error {
	if n.conn == nil {
		return nil
	}
	handlers := map[string]func(*nats.Msg){
		SubjectSeriesChanged: func(msg *nats.Msg) {
			n.handleSeriesChanged(target, msg)
		},
		SubjectScoringSystemChanged: func(msg *nats.Msg) {
			n.handleScoringSystemChanged(target, msg)
		},
	}
	for subject, h := range handlers {
		sub, err := n.conn.Subscribe(subject, h)
		if err != nil {
			n.Close()
			return err
		}
		n.subs = append(n.subs, sub)
	}
	return nil
}

func (n *Notifier) handleSeriesChanged(target Invalidator, msg *nats.Msg) {
	ev, err := jsonTransfer[ChangeEvent]{}.FromBinary(msg.Data)
	if err != nil {
		n.l.Error("error unmarshalling series change", log.ErrorField(err))
		return
	}
	n.l.Debug("received series change",
		log.Int("seriesId", ev.ID), log.String("reason", ev.Reason))
	if err := target.Invalidate(n.ctx, ev.ID); err != nil {
		n.l.Error("could not invalidate series",
			log.Int("seriesId", ev.ID), log.ErrorField(err))
		return
	}
	n.recomputeIfEager(target, []int{ev.ID})
}

func (n *Notifier) handleScoringSystemChanged(target Invalidator, msg *nats.Msg) {
	ev, err := jsonTransfer[ChangeEvent]{}.FromBinary(msg.Data)
	if err != nil {
		n.l.Error("error unmarshalling scoring system change", log.ErrorField(err))
		return
	}
	n.l.Debug("received scoring system change",
		log.Int("scoringSystemId", ev.ID), log.String("reason", ev.Reason))
	ids, err := target.InvalidateScoringSystem(n.ctx, ev.ID)
	if err != nil {
		n.l.Error("could not invalidate scoring system",
			log.Int("scoringSystemId", ev.ID), log.ErrorField(err))
	}
	n.recomputeIfEager(target, ids)
}

func (n *Notifier) recomputeIfEager(target Invalidator, ids []int) {
	if !n.recompute || len(ids) == 0 {
		return
	}
	if err := target.RecomputeAll(n.ctx, ids); err != nil {
		n.l.Warn("recompute after change failed", log.ErrorField(err))
	}
}

func summaryKey(seriesID int) string {
	return "series." + strconv.Itoa(seriesID)
}

// StandingPublished stores the summary of res in the KV bucket.
// It matches the signature of the scoring service publish hook.
func (n *Notifier) StandingPublished(ctx context.Context, res *model.CachedResult) {
	if n.kv == nil {
		return
	}
	data, err := jsonTransfer[Summary]{}.ToBinary(summarize(res))
	if err != nil {
		n.l.Error("error converting summary", log.ErrorField(err))
		return
	}
	rev, err := n.kv.Put(ctx, summaryKey(res.SeriesID), data)
	n.l.Debug("summary put",
		log.String("key", summaryKey(res.SeriesID)),
		log.Int("dataLen", len(data)),
		log.Uint64("rev", rev),
		log.ErrorField(err))
}

var ErrNoSummary = errors.New("no summary available")

// LoadSummary reads the last published summary of a series
func (n *Notifier) LoadSummary(ctx context.Context, seriesID int) (*Summary, error) {
	if n.kv == nil {
		return nil, ErrNoSummary
	}
	kve, err := n.kv.Get(ctx, summaryKey(seriesID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNoSummary
		}
		return nil, fmt.Errorf("summary %d: %w", seriesID, err)
	}
	return jsonTransfer[Summary]{}.FromBinary(kve.Value())
}
