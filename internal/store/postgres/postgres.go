// Package postgres implements store.Store on top of PostgreSQL using
// github.com/jackc/pgx/v5 and its connection pool, matching the schema
// described in spec.md §3 and _examples/original_source/ds/db/__init__.py.
package postgres

import (
	"context"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhcpsprout/dhcpsprout/internal/store"
)

// uniqueViolation is the PostgreSQL error code for a uniqueness constraint
// violation (23505), the only pgconn.PgError.Code this package treats
// specially — matching psycopg2.IntegrityError's role in the Python
// original.
const uniqueViolation = "23505"

// itemQuery joins owner and profile, used identically (modulo WHERE
// clause) by LoadOwners, ReloadItem, and ReloadProfile.
const itemQuery = `
SELECT
	o.id, o.profile_id, o.mac_addr, o.ip_addr, o.lease_date, o.create_date, o.modify_date,
	p.id, p.name, p.description, p.relay_ip, p.network_addr, p.router_ip, p.dns_ips, p.ntp_ips, p.lease_time
FROM owner o
JOIN profile p ON p.id = o.profile_id
`

// Store is a PostgreSQL-backed store.Store. The pool serves the short-lived
// reads and writes the reconciler issues; these are not pinned to a single
// connection, so successive tasks may run on different pooled connections.
// Listen opens its own dedicated, unpooled connection for LISTEN.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL at dsn and returns a ready Store. The caller
// must call Close when done.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Annotate(err, "postgres: connecting: %w")
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, errors.Annotate(err, "postgres: ping: %w")
	}

	return &Store{pool: pool}, nil
}

// Close implements store.Store.
func (s *Store) Close() {
	s.pool.Close()
}

func scanItem(row pgx.Row) (store.Item, error) {
	var it store.Item
	var leaseDate, createDate, modifyDate *time.Time
	var ip, routerIP *netip.Addr
	var dnsIPs, ntpIPs []netip.Addr
	var networkAddr netip.Prefix
	var leaseTimeSeconds int64

	err := row.Scan(
		&it.Owner.ID, &it.Owner.ProfileID, &it.Owner.MACAddr, &ip, &leaseDate, &createDate, &modifyDate,
		&it.Profile.ID, &it.Profile.Name, &it.Profile.Description, &it.Profile.RelayIP, &networkAddr,
		&routerIP, &dnsIPs, &ntpIPs, &leaseTimeSeconds,
	)
	if err != nil {
		return store.Item{}, err
	}

	if ip != nil {
		it.Owner.IPAddr = *ip
	}
	if leaseDate != nil {
		it.Owner.LeaseDate = *leaseDate
	}
	if createDate != nil {
		it.Owner.CreateDate = *createDate
	}
	if modifyDate != nil {
		it.Owner.ModifyDate = *modifyDate
	}
	if routerIP != nil {
		it.Profile.RouterIP = *routerIP
	}
	it.Profile.NetworkAddr = networkAddr
	it.Profile.DNSIPs = dnsIPs
	it.Profile.NTPIPs = ntpIPs
	it.Profile.LeaseTime = time.Duration(leaseTimeSeconds) * time.Second

	return it, nil
}

// LoadOwners implements store.Store.
func (s *Store) LoadOwners(ctx context.Context) ([]store.Item, error) {
	rows, err := s.pool.Query(ctx, itemQuery+" ORDER BY o.modify_date ASC")
	if err != nil {
		return nil, errors.Annotate(err, "postgres: load owners: %w")
	}
	defer rows.Close()

	return collectItems(rows)
}

// ReloadItem implements store.Store.
func (s *Store) ReloadItem(ctx context.Context, ownerID int64) (store.Item, error) {
	row := s.pool.QueryRow(ctx, itemQuery+" WHERE o.id = $1", ownerID)

	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Item{}, store.ErrNotFound
	} else if err != nil {
		return store.Item{}, errors.Annotate(err, "postgres: reload item: %w")
	}

	return it, nil
}

// ReloadProfile implements store.Store.
func (s *Store) ReloadProfile(ctx context.Context, profileID int64) ([]store.Item, error) {
	rows, err := s.pool.Query(
		ctx,
		itemQuery+" WHERE p.id = $1 ORDER BY o.modify_date ASC",
		profileID,
	)
	if err != nil {
		return nil, errors.Annotate(err, "postgres: reload profile: %w")
	}
	defer rows.Close()

	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]store.Item, error) {
	var items []store.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, errors.Annotate(err, "postgres: scanning item: %w")
		}

		items = append(items, it)
	}

	return items, rows.Err()
}

// InsertStagingOwner implements store.Store.
func (s *Store) InsertStagingOwner(
	ctx context.Context,
	mac string,
	relayIP netip.Addr,
) (ownerID int64, err error) {
	const q = `
		INSERT INTO owner (mac_addr, profile_id)
		SELECT $1, id FROM profile WHERE relay_ip = $2
		RETURNING id
	`

	err = s.pool.QueryRow(ctx, q, mac, relayIP).Scan(&ownerID)
	if err == nil {
		return ownerID, nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrNoProfile
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return 0, store.ErrDuplicateOwner
	}

	return 0, errors.Annotate(err, "postgres: insert staging owner: %w")
}

// UpdateLease implements store.Store.
func (s *Store) UpdateLease(ctx context.Context, ownerID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, "UPDATE owner SET lease_date = $1 WHERE id = $2", at, ownerID)
	if err != nil {
		return errors.Annotate(err, "postgres: update lease: %w")
	}

	return nil
}

// Listen implements store.Store. It opens a dedicated, unpooled connection
// for the lifetime of ctx, matching spec.md §4.6's "dedicated connection to
// the store".
func (s *Store) Listen(ctx context.Context, channel string) (<-chan store.Notification, error) {
	// An unpooled, dedicated connection, matching spec.md §4.6's "dedicated
	// connection to the store".
	conn, err := pgx.ConnectConfig(ctx, s.pool.Config().ConnConfig.Copy())
	if err != nil {
		return nil, errors.Annotate(err, "postgres: listen: connecting: %w")
	}

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Close(ctx)

		return nil, errors.Annotate(err, "postgres: listen: %w")
	}

	out := make(chan store.Notification)
	go func() {
		defer close(out)
		defer conn.Close(context.Background())

		for {
			n, waitErr := conn.WaitForNotification(ctx)
			if waitErr != nil {
				if ctx.Err() == nil {
					log.Error("postgres: listen: waiting for notification: %s", waitErr)
				}

				return
			}

			select {
			case out <- store.Notification{Payload: n.Payload}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
