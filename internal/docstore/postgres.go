package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/teachai/server/internal/metrics"
)

const (
	// NotifyChannel is the Postgres NOTIFY channel carrying document keys.
	// The documents table trigger (see migrations) emits the written key on
	// this channel after every insert or update.
	NotifyChannel = "teachai_documents"

	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// PostgresStore stores documents in a JSONB table and pushes changes to
// subscribers via LISTEN/NOTIFY.
//
// One listener connection serves all subscriptions in the process. On a
// notification for a watched key the store re-reads the document and fans it
// out, so subscribers always observe committed state rather than the raw
// notification payload.
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	subs   map[string]map[int]ChangeFunc
	nextID int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPostgresStore creates a store over an open database handle. The DSN is
// needed separately because the notification listener maintains its own
// dedicated connection.
func NewPostgresStore(db *sql.DB, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	listener := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("docstore listener event", "event", ev, "error", err)
			}
		})

	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	s := &PostgresStore{
		db:       db,
		listener: listener,
		logger:   logger,
		subs:     make(map[string]map[int]ChangeFunc),
		stopCh:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.dispatch()

	return s, nil
}

// Get returns the document stored at key.
func (s *PostgresStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var doc pqtype.NullRawMessage
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE key = $1`, key,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document %q: %w", key, err)
	}
	if !doc.Valid {
		return nil, false, nil
	}
	return json.RawMessage(doc.RawMessage), true, nil
}

// Set overwrites the whole document at key. The table trigger notifies the
// listener connection, which fans the change out to subscribers, including
// the writer's own process.
func (s *PostgresStore) Set(ctx context.Context, key string, doc json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (key, doc, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		key, pqtype.NullRawMessage{RawMessage: doc, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("set document %q: %w", key, err)
	}
	return nil
}

// Subscribe watches a single document.
func (s *PostgresStore) Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	id := s.nextID
	s.nextID++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]ChangeFunc)
	}
	s.subs[key][id] = fn
	s.mu.Unlock()

	// Initial fire with current committed state.
	doc, ok, err := s.Get(ctx, key)
	if err != nil {
		s.removeSub(key, id)
		return nil, err
	}
	fn(doc, ok)

	var once sync.Once
	return func() {
		once.Do(func() { s.removeSub(key, id) })
	}, nil
}

func (s *PostgresStore) removeSub(key string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[key], id)
	if len(s.subs[key]) == 0 {
		delete(s.subs, key)
	}
}

// dispatch is the single goroutine draining listener notifications.
func (s *PostgresStore) dispatch() {
	defer s.wg.Done()

	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case n := <-s.listener.Notify:
			if n == nil {
				// Connection re-established; watched documents may have
				// changed while disconnected, so refresh all of them.
				s.refreshAll()
				continue
			}
			s.fanOut(n.Extra)
		case <-ping.C:
			if err := s.listener.Ping(); err != nil {
				s.logger.Warn("docstore listener ping failed", "error", err)
			}
		}
	}
}

// fanOut re-reads the document at key and delivers it to that key's
// subscribers. Keys nobody watches are ignored.
func (s *PostgresStore) fanOut(key string) {
	s.mu.Lock()
	fns := make([]ChangeFunc, 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	if len(fns) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	doc, ok, err := s.Get(ctx, key)
	if err != nil {
		s.logger.Error("docstore refresh after notify failed", "key", key, "error", err)
		return
	}
	for _, fn := range fns {
		fn(doc, ok)
	}
	metrics.DocstoreNotifications.WithLabelValues(ProviderPostgres).Add(float64(len(fns)))
}

func (s *PostgresStore) refreshAll() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.subs))
	for key := range s.subs {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	for _, key := range keys {
		s.fanOut(key)
	}
}

// Close stops the dispatch goroutine and the listener connection. The shared
// *sql.DB is owned by the caller and left open.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = make(map[string]map[int]ChangeFunc)
	s.mu.Unlock()

	close(s.stopCh)
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

var _ Store = (*PostgresStore)(nil)
