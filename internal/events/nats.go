// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

//go:build nats

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/huntboard/huntboard/internal/config"
)

// StreamName is the JetStream stream backing every Huntboard topic.
const StreamName = "HUNTBOARD_EVENTS"

// streamSubjects covers all topics, dead letters included.
var streamSubjects = []string{"interactions.>", "catalog.>", "profiles.>", "recs.>", "dlq.>"}

// NewNATSBus returns a Bus over JetStream. With EmbeddedServer set, an
// in-process NATS server is started first and the bus connects to it;
// otherwise the configured URL is used. The stream is provisioned before
// the publisher and subscriber connect.
//
// Message UUIDs become Nats-Msg-Id, so JetStream's duplicate window
// suppresses republished events server-side.
func NewNATSBus(cfg config.NATSConfig, evCfg config.EventsConfig) (*Bus, error) {
	logger := NewLoggerAdapter()

	url := cfg.URL
	var ns *server.Server
	if cfg.EmbeddedServer {
		var err error
		ns, err = startEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		url = ns.ClientURL()
	}

	shutdownServer := func() {
		if ns != nil {
			ns.Shutdown()
			ns.WaitForShutdown()
		}
	}

	if err := ensureStream(url); err != nil {
		shutdownServer()
		return nil, err
	}

	pub, err := newJetStreamPublisher(url, logger)
	if err != nil {
		shutdownServer()
		return nil, err
	}

	sub, err := newJetStreamSubscriber(url, evCfg, logger)
	if err != nil {
		_ = pub.Close()
		shutdownServer()
		return nil, err
	}

	closers := []func() error{pub.Close, sub.Close}
	if ns != nil {
		closers = append(closers, func() error {
			ns.Shutdown()
			ns.WaitForShutdown()
			return nil
		})
	}

	return newBus(pub, sub, logger, closers...), nil
}

func startEmbeddedServer(cfg config.NATSConfig) (*server.Server, error) {
	opts := &server.Options{
		ServerName: "huntboard-events",
		Host:       "127.0.0.1",
		Port:       server.RANDOM_PORT,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		MaxPayload: 1 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}
	return ns, nil
}

// ensureStream creates or updates the stream. Idempotent.
func ensureStream(url string) error {
	nc, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(5),
	)
	if err != nil {
		return fmt.Errorf("connect for stream provisioning: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	streamCfg := jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    streamSubjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	_, err = js.Stream(ctx, StreamName)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", StreamName, err)
		}
		return nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", StreamName, err)
		}
		return nil
	default:
		return fmt.Errorf("check stream %s: %w", StreamName, err)
	}
}

func newJetStreamPublisher(url string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	cfg := wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOptions(logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create jetstream publisher: %w", err)
	}
	return pub, nil
}

func newJetStreamSubscriber(url string, evCfg config.EventsConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(evCfg.MaxRetries + 1),
		natsgo.MaxAckPending(1024),
		natsgo.AckWait(30 * time.Second),
		natsgo.DeliverNew(),
		natsgo.BindStream(StreamName),
	}

	cfg := wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: "huntboard",
		SubscribersCount: 4,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     evCfg.CloseTimeout,
		NatsOptions:      natsOptions(logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    "huntboard",
		},
	}

	sub, err := wmNats.NewSubscriber(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create jetstream subscriber: %w", err)
	}
	return sub, nil
}

func natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
}
