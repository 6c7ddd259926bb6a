package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hostview/extview/extension"
)

const (
	// Key prefix for per-process message queues.
	redisQueueKeyPrefix = "extview:process:"
	// How long the receiver's BRPOP blocks waiting for messages.
	redisBlockTimeout = 5 * time.Second
	// Default timeout for host-side LPUSH calls.
	redisDefaultSendTimeout = 5 * time.Second

	kindExtensionMessage = "extension_message"
)

// envelope is the wire format for the per-process Redis list. Exactly one
// of Announcement or Message is set, selected by Kind.
type envelope struct {
	Kind         string                     `json:"kind"`
	FrameID      string                     `json:"frame_id,omitempty"`
	Announcement *extension.Announcement    `json:"announcement,omitempty"`
	Message      *extension.OutboundMessage `json:"message,omitempty"`
}

func redisQueueKey(processID string) string {
	return redisQueueKeyPrefix + processID
}

// RedisProcess sends to a content process through a Redis list shared with
// that process (LPUSH here, BRPOP on the receiving side).
type RedisProcess struct {
	rdb         redis.Cmdable
	processID   string
	queueKey    string
	sendTimeout time.Duration
}

// RedisProcessOption configures a RedisProcess.
type RedisProcessOption func(*RedisProcess)

// WithSendTimeout bounds each LPUSH when the caller's context has no
// deadline. Defaults to 5 seconds.
func WithSendTimeout(d time.Duration) RedisProcessOption {
	return func(p *RedisProcess) {
		if d > 0 {
			p.sendTimeout = d
		}
	}
}

// NewRedisProcess creates the handle for the process identified by
// processID. The Redis client is owned by the caller.
func NewRedisProcess(rdb redis.Cmdable, processID string, opts ...RedisProcessOption) (*RedisProcess, error) {
	if rdb == nil {
		return nil, errors.New("transport: redis client is required")
	}
	if processID == "" {
		return nil, errors.New("transport: process id is required")
	}
	p := &RedisProcess{
		rdb:         rdb,
		processID:   processID,
		queueKey:    redisQueueKey(processID),
		sendTimeout: redisDefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Announce implements Process.
func (p *RedisProcess) Announce(ctx context.Context, ann *extension.Announcement) error {
	return p.push(ctx, &envelope{Kind: extension.KindRegisterExtension, Announcement: ann})
}

// Deliver implements Process.
func (p *RedisProcess) Deliver(ctx context.Context, frameID string, msg *extension.OutboundMessage) error {
	return p.push(ctx, &envelope{Kind: kindExtensionMessage, FrameID: frameID, Message: msg})
}

func (p *RedisProcess) push(ctx context.Context, env *envelope) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
	}

	payload, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("process_id", p.processID).Str("kind", env.Kind).Msg("failed to serialize process message")
		return fmt.Errorf("serialization failed: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueKey, payload).Err(); err != nil {
		log.Error().Err(err).Str("process_id", p.processID).Str("queue_key", p.queueKey).Msg("failed to push message to process queue")
		return err
	}

	log.Debug().Str("process_id", p.processID).Str("kind", env.Kind).Msg("message pushed to process queue")
	return nil
}

var _ Process = (*RedisProcess)(nil)

// RedisReceiver is the content-process side of the Redis channel: a BRPOP
// loop that decodes envelopes and hands them to a Handler.
type RedisReceiver struct {
	rdb      redis.Cmdable
	queueKey string
	handler  Handler

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRedisReceiver starts draining the queue of processID, invoking
// handler for each decoded envelope. Close stops the loop and joins it.
func NewRedisReceiver(rdb redis.Cmdable, processID string, handler Handler) (*RedisReceiver, error) {
	if rdb == nil {
		return nil, errors.New("transport: redis client is required")
	}
	if handler == nil {
		return nil, errors.New("transport: handler is required")
	}
	r := &RedisReceiver{
		rdb:      rdb,
		queueKey: redisQueueKey(processID),
		handler:  handler,
		stopChan: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

func (r *RedisReceiver) run() {
	defer r.wg.Done()
	log.Debug().Str("queue_key", r.queueKey).Msg("process queue receiver started")

	for {
		select {
		case <-r.stopChan:
			log.Debug().Str("queue_key", r.queueKey).Msg("process queue receiver stopping")
			return
		default:
		}

		result, err := r.rdb.BRPop(context.Background(), redisBlockTimeout, r.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // timeout, nothing queued
			}
			select {
			case <-r.stopChan:
				return
			default:
			}
			log.Error().Err(err).Str("queue_key", r.queueKey).Msg("error during brpop on process queue")
			select {
			case <-time.After(time.Second):
			case <-r.stopChan:
				return
			}
			continue
		}

		// BRPOP returns []string{key, value}.
		if len(result) != 2 {
			log.Error().Str("queue_key", r.queueKey).Int("result_len", len(result)).Msg("invalid result format from brpop")
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
			log.Error().Err(err).Str("queue_key", r.queueKey).Msg("failed to unmarshal process message, skipping")
			continue
		}
		r.dispatch(&env)
	}
}

func (r *RedisReceiver) dispatch(env *envelope) {
	switch env.Kind {
	case extension.KindRegisterExtension:
		if env.Announcement == nil {
			log.Error().Str("queue_key", r.queueKey).Msg("announcement envelope without announcement body")
			return
		}
		r.handler.HandleAnnouncement(env.Announcement)
	case kindExtensionMessage:
		if env.Message == nil {
			log.Error().Str("queue_key", r.queueKey).Msg("message envelope without message body")
			return
		}
		r.handler.HandleMessage(env.FrameID, env.Message)
	default:
		log.Warn().Str("queue_key", r.queueKey).Str("kind", env.Kind).Msg("unknown envelope kind, skipping")
	}
}

// Close stops the receive loop and waits for it to exit. Idempotent.
func (r *RedisReceiver) Close() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
		log.Debug().Str("queue_key", r.queueKey).Msg("process queue receiver closed")
	})
}
