package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

// Concrete franz-go based constructor with writer and reader wrappers.

type Config struct {
	Brokers                []string
	TLS                    *tls.Config
	ClientID               string
	GroupID                string
	RequireAllAcks         bool
	DisableIdempotentWrite bool
	Compression            string // gzip, snappy, lz4, zstd; empty for none
	// Topics are consumed from the start; Subscribe adds more later.
	Topics []string
	// ResetToLatest skips records produced before the client first joined.
	ResetToLatest bool
}

type kgoWriter struct{ cl *kgo.Client }

func (w kgoWriter) Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if len(headers) > 0 {
		rec.Headers = make([]kgo.RecordHeader, 0, len(headers))
		for k, v := range headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
	}

	return w.cl.ProduceSync(ctx, rec).FirstErr()
}

type kgoReader struct{ cl *kgo.Client }

func (r kgoReader) AddTopics(topics ...string) { r.cl.AddConsumeTopics(topics...) }

func (r kgoReader) Poll(ctx context.Context) ([]Record, error) {
	fetches := r.cl.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return nil, ErrReaderClosed
	}

	var firstErr error
	for _, fe := range fetches.Errors() {
		if firstErr == nil {
			firstErr = fmt.Errorf("fetch %s[%d]: %w", fe.Topic, fe.Partition, fe.Err)
		}
	}

	var recs []Record

	fetches.EachRecord(func(kr *kgo.Record) {
		rec := Record{Topic: kr.Topic, Key: kr.Key, Value: kr.Value}
		if len(kr.Headers) > 0 {
			rec.Headers = make(map[string]string, len(kr.Headers))
			for _, h := range kr.Headers {
				rec.Headers[h.Key] = string(h.Value)
			}
		}

		recs = append(recs, rec)
	})

	return recs, firstErr
}

func compressionCodec(name string) (kgo.CompressionCodec, bool) {
	switch strings.ToLower(name) {
	case "gzip":
		return kgo.GzipCompression(), true
	case "snappy":
		return kgo.SnappyCompression(), true
	case "lz4":
		return kgo.Lz4Compression(), true
	case "zstd":
		return kgo.ZstdCompression(), true
	default:
		return kgo.NoCompression(), false
	}
}

// NewWithKgo builds a franz-go client based Adapter that both produces and consumes.
// The returned cleanup should be called to close the client.
func NewWithKgo(cfg Config, logger *slog.Logger) (*Adapter, func(), error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, fmt.Errorf("%w: kafka brokers required", berr.ErrNotConfigured)
	}

	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	if cfg.GroupID != "" {
		opts = append(opts, kgo.ConsumerGroup(cfg.GroupID))
	}

	if len(cfg.Topics) > 0 {
		opts = append(opts, kgo.ConsumeTopics(cfg.Topics...))
	}

	if cfg.ResetToLatest {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	}

	if cfg.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(cfg.TLS))
	}

	if cfg.RequireAllAcks {
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	}

	if cfg.DisableIdempotentWrite {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	if codec, ok := compressionCodec(cfg.Compression); ok {
		opts = append(opts, kgo.ProducerBatchCompression(codec))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: kafka client init: %w", berr.ErrNotConfigured, err)
	}

	ad := New(kgoWriter{cl: cl}, kgoReader{cl: cl})
	ad.Logger = logger
	cleanup := func() { cl.Close() }

	return ad, cleanup, nil
}
