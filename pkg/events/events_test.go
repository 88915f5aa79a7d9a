package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joeydtaylor/agegate/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	e := New(TypeAssertionIssued, at, map[string]string{"ageTier": "21+"})
	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeAssertionIssued, e.Type)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.True(t, at.Equal(e.OccurredAt))
}

func TestNewPublisherWithoutTargetIsNoop(t *testing.T) {
	p, err := NewPublisher(policy.RelayFile{Target: "  "}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), New(TypeAssertionIssued, time.Now(), nil)))
	assert.NoError(t, p.Close())
}

func TestParseRelay(t *testing.T) {
	key := strings.Repeat("ab", 32)
	tests := []struct {
		name    string
		rf      policy.RelayFile
		targets []string
		wantErr bool
	}{
		{name: "targets", rf: policy.RelayFile{Target: "a:1, b:2,"}, targets: []string{"a:1", "b:2"}},
		{name: "only commas", rf: policy.RelayFile{Target: ",,"}, wantErr: true},
		{name: "aes ok", rf: policy.RelayFile{Target: "a:1", Encrypt: "AESGCM", AES256KeyHex: key}, targets: []string{"a:1"}},
		{name: "aes short", rf: policy.RelayFile{Target: "a:1", Encrypt: "aesgcm", AES256KeyHex: "abcd"}, wantErr: true},
		{name: "aes not hex", rf: policy.RelayFile{Target: "a:1", Encrypt: "aesgcm", AES256KeyHex: strings.Repeat("zz", 32)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseRelay(tt.rf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.targets, s.targets)
		})
	}

	s, err := parseRelay(policy.RelayFile{Target: "a:1", Compress: "Snappy", Encrypt: "aesgcm", AES256KeyHex: key})
	require.NoError(t, err)
	assert.True(t, s.snappy)
	assert.True(t, s.aesgcm)
	assert.Len(t, s.aesKey, 32)
}

func TestMemory(t *testing.T) {
	m := &Memory{}
	ctx := context.Background()
	require.NoError(t, m.Publish(ctx, Event{Type: "a"}))
	require.NoError(t, m.Publish(ctx, Event{Type: "b"}))

	got := m.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Type)
	got[0].Type = "mutated"
	assert.Equal(t, "a", m.Events()[0].Type)

	m.Err = errors.New("down")
	assert.Error(t, m.Publish(ctx, Event{Type: "c"}))
	assert.Len(t, m.Events(), 2)
}

func TestRelayClosed(t *testing.T) {
	stopped := 0
	r := &relay{
		topic:  "t",
		submit: func(context.Context, []byte) error { return nil },
		stop:   func() { stopped++ },
		log:    zap.NewNop(),
	}
	require.NoError(t, r.Publish(context.Background(), Event{Type: "x"}))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, stopped)
	assert.ErrorIs(t, r.Publish(context.Background(), Event{Type: "x"}), ErrClosed)
}

func TestRelayPublishEncodesJSON(t *testing.T) {
	var got []byte
	r := &relay{
		topic: "t",
		submit: func(_ context.Context, b []byte) error {
			got = b
			return nil
		},
		stop: func() {},
		log:  zap.NewNop(),
	}
	require.NoError(t, r.Publish(context.Background(), Event{ID: "1", Type: TypeAssertionIssued, Data: map[string]string{"ageTier": "21+"}}))
	assert.JSONEq(t, `{"id":"1","type":"assertion.issued","occurredAt":"0001-01-01T00:00:00Z","data":{"ageTier":"21+"}}`, string(got))

	r.submit = func(context.Context, []byte) error { return errors.New("wire down") }
	assert.ErrorContains(t, r.Publish(context.Background(), Event{Type: TypeAssertionIssued}), "wire down")
}
