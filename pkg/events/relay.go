package events

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joeydtaylor/agegate/pkg/policy"
	"github.com/joeydtaylor/electrician/pkg/builder"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("events: relay closed")

// relay pushes JSON-encoded events into an electrician ForwardRelay. No
// builder types are kept on the struct; closures capture them.
type relay struct {
	topic  string
	submit func(context.Context, []byte) error
	stop   func()
	log    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

type relaySettings struct {
	targets []string
	snappy  bool
	aesgcm  bool
	aesKey  string
}

func parseRelay(rf policy.RelayFile) (relaySettings, error) {
	s := relaySettings{
		snappy: strings.EqualFold(rf.Compress, "snappy"),
		aesgcm: strings.EqualFold(rf.Encrypt, "aesgcm"),
	}
	for _, t := range strings.Split(rf.Target, ",") {
		if t = strings.TrimSpace(t); t != "" {
			s.targets = append(s.targets, t)
		}
	}
	if len(s.targets) == 0 {
		return s, fmt.Errorf("relay target %q has no addresses", rf.Target)
	}
	if s.aesgcm {
		raw, err := hex.DecodeString(strings.TrimSpace(rf.AES256KeyHex))
		if err != nil || len(raw) != 32 {
			return s, fmt.Errorf("relay aes256_key_hex must be 64 hex chars (32 bytes)")
		}
		s.aesKey = string(raw)
	}
	return s, nil
}

// NewPublisher returns a relay publisher when rf.Target is set and the noop
// publisher otherwise.
func NewPublisher(rf policy.RelayFile, log *zap.Logger) (Publisher, error) {
	if strings.TrimSpace(rf.Target) == "" {
		return Noop(), nil
	}
	s, err := parseRelay(rf)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	blog := builder.NewLogger(builder.LoggerWithDevelopment(false))
	wire := builder.NewWire[[]byte](ctx, builder.WireWithLogger[[]byte](blog))

	perf := builder.NewPerformanceOptions(s.snappy, builder.COMPRESS_SNAPPY)
	sec := builder.NewSecurityOptions(s.aesgcm, builder.ENCRYPTION_AES_GCM)
	tlsCfg := builder.NewTlsClientConfig(
		rf.TLSEnable,
		rf.TLSClientCert, rf.TLSClientKey, rf.TLSCA,
		tls.VersionTLS13, tls.VersionTLS13,
	)

	fwd := builder.NewForwardRelay[[]byte](
		ctx,
		builder.ForwardRelayWithLogger[[]byte](blog),
		builder.ForwardRelayWithTarget[[]byte](s.targets...),
		builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
		builder.ForwardRelayWithSecurityOptions[[]byte](sec, s.aesKey),
		builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
		builder.ForwardRelayWithStaticHeaders[[]byte](rf.StaticHeaders),
		builder.ForwardRelayWithInput(wire),
	)

	if err := wire.Start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("relay wire start: %w", err)
	}
	if err := fwd.Start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("relay start: %w", err)
	}

	r := &relay{
		topic:  rf.Topic,
		submit: func(ctx context.Context, b []byte) error { return wire.Submit(ctx, b) },
		log:    log,
	}
	r.stop = func() {
		fwd.Stop()
		cancel()
	}
	log.Info("event relay started", zap.Strings("targets", s.targets), zap.String("topic", rf.Topic))
	return r, nil
}

func (r *relay) Publish(ctx context.Context, e Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	if err := r.submit(ctx, b); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.Type, r.topic, err)
	}
	return nil
}

func (r *relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.stop()
		r.log.Info("event relay stopped")
	}
	return nil
}
