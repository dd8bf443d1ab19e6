package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PostgresChangeNotifier はPostgreSQLのLISTEN/NOTIFYで変更を通知するChangeNotifier。
// 発行はプール済みの*sql.DBで行い、購読ごとに専用のpq.Listener接続を開く。
type PostgresChangeNotifier struct {
	db      *sql.DB
	dsn     string
	channel string
	logger  *slog.Logger

	minReconnect time.Duration
	maxReconnect time.Duration
}

// NewPostgresChangeNotifier はPostgresChangeNotifierを生成する。
// dsnはpq.Listenerの接続に使う。
func NewPostgresChangeNotifier(db *sql.DB, dsn, channel string, logger *slog.Logger) *PostgresChangeNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresChangeNotifier{
		db:           db,
		dsn:          dsn,
		channel:      channel,
		logger:       logger,
		minReconnect: 10 * time.Second,
		maxReconnect: time.Minute,
	}
}

// Publish は変更をチャネルに通知する。
func (n *PostgresChangeNotifier) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.channel, string(payload)); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// Subscribe はチャネルをLISTENし、受信した変更を返すチャネルを返す。
// ctxがキャンセルされるとリスナーを閉じてチャネルを閉じる。
func (n *PostgresChangeNotifier) Subscribe(ctx context.Context) (<-chan Change, error) {
	listener := pq.NewListener(n.dsn, n.minReconnect, n.maxReconnect, n.logEvent)
	if err := listener.Listen(n.channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("postgres listen: %w", err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case notification, ok := <-listener.Notify:
				if !ok {
					return
				}
				// 再接続直後はnilが届く。切断中の通知は失われている。
				if notification == nil {
					continue
				}
				var change Change
				if err := json.Unmarshal([]byte(notification.Extra), &change); err != nil {
					n.logger.Warn("discarding malformed change notification",
						slog.String("channel", n.channel),
						slog.String("error", err.Error()),
					)
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (n *PostgresChangeNotifier) logEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		attrs := []any{slog.String("channel", n.channel)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		n.logger.Warn("session change listener disconnected", attrs...)
	case pq.ListenerEventReconnected:
		n.logger.Info("session change listener reconnected", slog.String("channel", n.channel))
	}
}

var _ ChangeNotifier = (*PostgresChangeNotifier)(nil)
