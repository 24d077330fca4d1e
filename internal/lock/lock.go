// Package lock keeps two runs from renaming inside the same directory.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

var ErrLocked = errors.New("directory is locked by another run")

// ErrLost is the cancellation cause of a guarded context whose lease expired
// or was taken over.
var ErrLost = errors.New("directory lock lost")

const keyPrefix = "pdfrename:lock:"

// Only the holder of the token may extend or delete the key.
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Store is the subset of the redis client the lock uses.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

type Options struct {
	RedisURL string
	TTL      time.Duration
}

type Locker struct {
	rdb    Store
	ttl    time.Duration
	closer func() error
}

func New(ctx context.Context, opts Options) (*Locker, error) {
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(ro)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	l := NewWithStore(c, opts.TTL)
	l.closer = c.Close
	return l, nil
}

func NewWithStore(s Store, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Locker{rdb: s, ttl: ttl}
}

// Key is the redis key guarding dir.
func Key(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	sum := blake2b.Sum256([]byte(filepath.Clean(abs)))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// Acquire takes the lock for dir or returns ErrLocked. The lease is
// extended in the background until Release.
func (l *Locker) Acquire(ctx context.Context, dir string) (*Lease, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key := Key(dir)
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrLocked)
	}

	le := &Lease{
		l:     l,
		key:   key,
		token: token,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		lost:  make(chan struct{}),
	}
	go le.refresh(l.ttl / 3)
	log.Debug().Str("key", key).Dur("ttl", l.ttl).Msg("directory lock acquired")
	return le, nil
}

func (l *Locker) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}

type Lease struct {
	l     *Locker
	key   string
	token string
	once  sync.Once
	stop  chan struct{}
	done  chan struct{}
	lost  chan struct{}
}

// Lost is closed when a refresh finds the key gone or owned by another run.
func (le *Lease) Lost() <-chan struct{} { return le.lost }

// Guard returns a child of parent that is cancelled with cause ErrLost once
// the lease is lost.
func (le *Lease) Guard(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case <-le.lost:
			cancel(ErrLost)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

func (le *Lease) refresh(every time.Duration) {
	defer close(le.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-le.stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			n, err := refreshScript.Run(ctx, le.l.rdb, []string{le.key}, le.token, le.l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("key", le.key).Msg("directory lock refresh failed")
			} else if n == 0 {
				log.Error().Str("key", le.key).Msg("directory lock lost")
				close(le.lost)
				return
			}
		}
	}
}

// Release stops the refresher and deletes the key if this lease still owns it.
func (le *Lease) Release(ctx context.Context) error {
	var err error
	le.once.Do(func() {
		close(le.stop)
		<-le.done
		err = releaseScript.Run(ctx, le.l.rdb, []string{le.key}, le.token).Err()
		if err != nil {
			err = fmt.Errorf("release %s: %w", le.key, err)
		}
	})
	return err
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
