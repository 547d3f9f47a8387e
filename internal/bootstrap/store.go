package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/slotbot/config"
	"github.com/Domenick1991/slotbot/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the booking store selected by the database driver.
type Store struct {
	Bookings repository.BookingRepository
	Ping     func(ctx context.Context) error
	close    func()
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects to the configured database and applies the schema.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case "sqlite":
		repo, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{Bookings: repo, Ping: repo.Ping, close: func() { _ = repo.Close() }}, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo := repository.NewBookingRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{Bookings: repo, Ping: repo.Ping, close: pool.Close}, nil
	}
}
