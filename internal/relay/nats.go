package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"victim-support/backend/pkg/logger"
)

// NatsRelay uses core nats subjects chat.room.<roomId>
type NatsRelay struct {
	nc  *nats.Conn
	log *logger.Logger
}

func NewNatsRelay(url string, log *logger.Logger) (*NatsRelay, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("victim-support-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsRelay{nc: nc, log: log}, nil
}

func (r *NatsRelay) Name() string { return "nats" }

func (r *NatsRelay) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(env)
	if err != nil {
		return err
	}
	if err := r.nc.Publish(subject(env.RoomID), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (r *NatsRelay) Subscribe(ctx context.Context, handler Handler) error {
	sub, err := r.nc.Subscribe(SubjectPrefix+".*", func(m *nats.Msg) {
		env, err := decode(m.Data)
		if err != nil {
			r.log.LogError(err, "Dropping malformed relay frame", "subject", m.Subject)
			return
		}
		if env.RoomID == "" {
			env.RoomID = roomFromSubject(m.Subject)
		}
		handler(env)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			r.log.LogError(err, "Failed to unsubscribe from relay")
		}
	}()
	return nil
}

func (r *NatsRelay) Ping(ctx context.Context) error {
	if !r.nc.IsConnected() {
		return errors.New("nats: not connected")
	}
	// FlushWithContext requires a deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}
	return r.nc.FlushWithContext(ctx)
}

func (r *NatsRelay) Close() error {
	r.nc.Close()
	return nil
}
