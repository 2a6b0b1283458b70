package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/usage-report/pkg/logger"
)

// Bucket names.
var (
	bucketArtifacts = []byte("artifacts") // ID -> Artifact
	bucketLatest    = []byte("latest")    // Kind -> ID (index)
)

// manifest implements the Manifest interface using bbolt.
type manifest struct {
	db     *bolt.DB
	logger logger.Logger
	now    func() time.Time
}

// New opens or creates the manifest database.
func New(cfg Config, log logger.Logger) (Manifest, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Noop()
	}

	dbPath := expandHome(cfg.Path)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketArtifacts); createErr != nil {
			return fmt.Errorf("failed to create artifacts bucket: %w", createErr)
		}
		if _, createErr := tx.CreateBucketIfNotExists(bucketLatest); createErr != nil {
			return fmt.Errorf("failed to create latest bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close manifest after initialization error", "error", closeErr)
		}
		return nil, err
	}

	log.Debug("manifest opened", "path", dbPath)

	return &manifest{db: db, logger: log, now: cfg.Now}, nil
}

// Record implements Manifest.Record.
func (m *manifest) Record(a *Artifact) error {
	if a == nil || a.Kind == "" || a.Path == "" {
		return ErrInvalidArtifact
	}

	a.ID = uuid.NewString()
	a.CreatedAt = m.now().UTC()

	return m.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal artifact: %w", err)
		}

		if err := tx.Bucket(bucketArtifacts).Put([]byte(a.ID), data); err != nil {
			return fmt.Errorf("failed to store artifact: %w", err)
		}
		if err := tx.Bucket(bucketLatest).Put([]byte(a.Kind), []byte(a.ID)); err != nil {
			return fmt.Errorf("failed to store latest index: %w", err)
		}

		m.logger.Debug("artifact recorded", "kind", a.Kind, "path", a.Path, "id", a.ID)
		return nil
	})
}

// Latest implements Manifest.Latest.
func (m *manifest) Latest(kind string) (*Artifact, error) {
	var id string
	if err := m.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLatest).Get([]byte(kind))
		if v == nil {
			return fmt.Errorf("%w: no %s recorded", ErrArtifactNotFound, kind)
		}
		id = string(v)
		return nil
	}); err != nil {
		return nil, err
	}

	return m.Get(id)
}

// Get implements Manifest.Get.
func (m *manifest) Get(id string) (*Artifact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}

	var artifact *Artifact
	err := m.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketArtifacts).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
		}

		var a Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("failed to unmarshal artifact: %w", err)
		}
		artifact = &a
		return nil
	})
	if err != nil {
		return nil, err
	}

	return artifact, nil
}

// List implements Manifest.List.
func (m *manifest) List(kind string) ([]*Artifact, error) {
	var artifacts []*Artifact

	err := m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).ForEach(func(_, v []byte) error {
			var a Artifact
			if err := json.Unmarshal(v, &a); err != nil {
				m.logger.Warn("skipping unreadable artifact", "error", err)
				return nil
			}
			if kind == "" || a.Kind == kind {
				artifacts = append(artifacts, &a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

// Close implements Manifest.Close.
func (m *manifest) Close() error {
	return m.db.Close()
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
