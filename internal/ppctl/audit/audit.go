// Package audit persists one row per parsed PROXY protocol header to a
// SQLite-backed log, so operators can answer "what headers did this
// machine see" after the fact.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/avionblock/ppcodec/proxyproto"
)

// Entry is one audit row.
type Entry struct {
	ID        int64
	Timestamp time.Time
	Version   int // 1 or 2
	Family    string
	Protocol  string
	Local     bool
	SrcAddr   string
	DstAddr   string
	SrcPort   uint16
	DstPort   uint16
	TlvTypes  string // comma-joined hex TLV types, e.g. "0x01,0x03"
	CRC32C    bool
}

// Store is a SQLite-backed audit log. SQLite only supports a single
// writer, so the connection pool is pinned to one connection.
type Store struct {
	db *sql.DB

	insertStmt *sql.Stmt
	recentStmt *sql.Stmt
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("audit db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare audit statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS headers (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         INTEGER NOT NULL,
	version    INTEGER NOT NULL,
	family     TEXT NOT NULL,
	protocol   TEXT NOT NULL,
	local      INTEGER NOT NULL,
	src_addr   TEXT NOT NULL,
	dst_addr   TEXT NOT NULL,
	src_port   INTEGER NOT NULL,
	dst_port   INTEGER NOT NULL,
	tlv_types  TEXT NOT NULL,
	crc32c     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_headers_ts ON headers(ts);
`)
	return err
}

func (s *Store) prepareStatements() error {
	var err error
	s.insertStmt, err = s.db.Prepare(`
INSERT INTO headers (ts, version, family, protocol, local, src_addr, dst_addr, src_port, dst_port, tlv_types, crc32c)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	s.recentStmt, err = s.db.Prepare(`
SELECT id, ts, version, family, protocol, local, src_addr, dst_addr, src_port, dst_port, tlv_types, crc32c
FROM headers ORDER BY id DESC LIMIT ?`)
	return err
}

// RecordHeader appends one row derived from a parsed PpInfo. version is
// the wire version the header arrived in.
func (s *Store) RecordHeader(ctx context.Context, pi *proxyproto.PpInfo, version int, at time.Time) error {
	types := make([]string, len(pi.TLVs))
	for i, tlv := range pi.TLVs {
		types[i] = fmt.Sprintf("0x%02x", byte(tlv.Type))
	}

	_, err := s.insertStmt.ExecContext(ctx,
		at.Unix(), version,
		pi.AddressFamily.String(), pi.TransportProtocol.String(), pi.Local,
		pi.SrcAddr, pi.DstAddr, pi.SrcPort, pi.DstPort,
		strings.Join(types, ","), pi.CRC32C,
	)
	if err != nil {
		return fmt.Errorf("failed to record header: %w", err)
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.recentStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Version, &e.Family, &e.Protocol, &e.Local,
			&e.SrcAddr, &e.DstAddr, &e.SrcPort, &e.DstPort, &e.TlvTypes, &e.CRC32C); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the prepared statements and the database handle.
func (s *Store) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	if s.recentStmt != nil {
		s.recentStmt.Close()
	}
	return s.db.Close()
}
