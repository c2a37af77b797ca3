// Package backup takes encrypted snapshots of the ledger database and keeps
// them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"
)

// ObjectStore is the subset of the S3 API the manager uses.
type ObjectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style client with static credentials, which
// works against AWS as well as MinIO and similar servers.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

const keyTimeLayout = "20060102T150405Z"

// Snapshot describes one stored snapshot object.
type Snapshot struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Verification summarizes a restored database.
type Verification struct {
	Transactions int64
	Balances     int64
	// Drifted counts balance rows whose current balance differs from the
	// sum of the user's ledger entries.
	Drifted int64
}

type Manager struct {
	db     *sql.DB
	client ObjectStore
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(db *sql.DB, client ObjectStore, bucket, prefix string, logger *slog.Logger, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		db:     db,
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "backup"),
		now:    now,
	}
}

// Create writes a consistent copy of the database with VACUUM INTO,
// encrypts it and uploads it.
func (m *Manager) Create(ctx context.Context, passphrase string) (*Snapshot, error) {
	dir, err := os.MkdirTemp("", "chorechamp-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	copyPath := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, copyPath); err != nil {
		return nil, fmt.Errorf("vacuum into snapshot: %w", err)
	}
	plaintext, err := os.ReadFile(copyPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plaintext, passphrase)
	if err != nil {
		return nil, err
	}

	created := m.now().UTC()
	key := m.prefix + created.Format(keyTimeLayout) + ".db.enc"
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.Info("snapshot uploaded", "key", key, "bytes", len(sealed))
	return &Snapshot{Key: key, Size: int64(len(sealed)), CreatedAt: created}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			created, err := time.Parse(keyTimeLayout, strings.TrimSuffix(strings.TrimPrefix(key, m.prefix), ".db.enc"))
			if err != nil {
				continue
			}
			out = append(out, Snapshot{Key: key, Size: aws.ToInt64(obj.Size), CreatedAt: created})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Restore downloads and decrypts the snapshot at key, checks it, and writes
// it to dstPath. The destination must not be open by a running server.
func (m *Manager) Restore(ctx context.Context, key, passphrase, dstPath string) (*Verification, error) {
	res, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download snapshot %s: %w", key, err)
	}
	sealed, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", key, err)
	}

	plaintext, err := Unseal(sealed, passphrase)
	if err != nil {
		return nil, err
	}

	tmp := dstPath + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0o600); err != nil {
		return nil, fmt.Errorf("write restored database: %w", err)
	}
	v, err := Verify(ctx, tmp)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}

	if err := os.Rename(tmp, dstPath); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dstPath + "-wal")
	os.Remove(dstPath + "-shm")

	m.logger.Info("snapshot restored", "key", key, "path", dstPath,
		"transactions", v.Transactions, "balances", v.Balances, "drifted", v.Drifted)
	return v, nil
}

// Prune deletes snapshots created before the retention window and returns
// the deleted keys.
func (m *Manager) Prune(ctx context.Context, retention time.Duration) ([]string, error) {
	snaps, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := m.now().UTC().Add(-retention)

	var deleted []string
	var errs error
	for _, s := range snaps {
		if !s.CreatedAt.Before(cutoff) {
			continue
		}
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(s.Key),
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", s.Key, err))
			continue
		}
		deleted = append(deleted, s.Key)
	}
	return deleted, errs
}

// Verify opens the database file at path, runs an integrity
// check and compares balances with ledger sums.
func Verify(ctx context.Context, path string) (*Verification, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open restored database: %w", err)
	}
	defer db.Close()

	var integrity string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&integrity); err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return nil, fmt.Errorf("integrity check failed: %s", integrity)
	}

	var v Verification
	err = db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM point_transactions),
		       (SELECT COUNT(*) FROM point_balances),
		       (SELECT COUNT(*) FROM point_balances b
		        LEFT JOIN (SELECT user_id, SUM(points) AS total FROM point_transactions GROUP BY user_id) t
		            ON t.user_id = b.user_id
		        WHERE b.current_balance <> COALESCE(t.total, 0))`,
	).Scan(&v.Transactions, &v.Balances, &v.Drifted)
	if err != nil {
		return nil, fmt.Errorf("verify ledger: %w", err)
	}
	return &v, nil
}
