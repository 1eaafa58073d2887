package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/ysrcpconnect/connect/internal/debuglog"
	"github.com/ysrcpconnect/connect/internal/model"
)

var (
	cacheBucket    = []byte("cache")
	authBucket     = []byte("auth")
	settingsBucket = []byte("settings")
)

var (
	sessionKey      = []byte("session")
	deviceTokenKey  = []byte("device_token")
	installationKey = []byte("installation_id")
	appSettingsKey  = []byte("app_settings")
)

// schemaVersion is stamped into every cache envelope; entries written with a
// different version are treated as misses rather than parsed.
const schemaVersion = 1

// Kind names one cached resource. Each kind has its own TTL; the cached
// snapshot is always the primary (page 1) view of the resource.
type Kind string

const (
	KindFeed          Kind = "feed"
	KindProfile       Kind = "profile"
	KindNotifications Kind = "notifications"
)

// MaxAge returns the TTL for the kind.
func (k Kind) MaxAge() time.Duration {
	switch k {
	case KindFeed:
		return 5 * time.Minute
	case KindProfile:
		return 10 * time.Minute
	case KindNotifications:
		return 2 * time.Minute
	default:
		return 0
	}
}

// Kinds lists every cache kind known to the store.
func Kinds() []Kind {
	return []Kind{KindFeed, KindProfile, KindNotifications}
}

type envelope struct {
	Schema    int             `json:"schema"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch millis
}

// Store is the persistent key-value layer: TTL-enveloped cache entries for
// the feed/profile/notifications snapshots, plus plain values for the auth
// session, device token, installation id and app settings.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func NewStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{cacheBucket, authBucket, settingsBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetCache wraps v in a timestamped envelope and persists it under the kind.
// The cache is an optimization, not a correctness requirement, so failures
// are logged and reported only as a boolean.
func (s *Store) SetCache(kind Kind, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		debuglog.Errorf("cache: encoding %s entry: %v", kind, err)
		return false
	}

	env := envelope{
		Schema:    schemaVersion,
		Data:      data,
		Timestamp: s.now().UnixMilli(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		debuglog.Errorf("cache: encoding %s envelope: %v", kind, err)
		return false
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(kind), raw)
	})
	if err != nil {
		debuglog.Errorf("cache: writing %s entry: %v", kind, err)
		return false
	}
	return true
}

// GetCache decodes the stored entry into out and reports a hit. A hit
// requires the entry to exist, carry the current schema version, and be no
// older than maxAge (age == maxAge is still fresh). Anything else is a miss;
// a miss is indistinguishable from never-cached.
func (s *Store) GetCache(kind Kind, maxAge time.Duration, out any) bool {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cacheBucket).Get([]byte(kind)); v != nil {
			raw = append(raw, v...)
		}
		return nil
	})
	if err != nil {
		debuglog.Errorf("cache: reading %s entry: %v", kind, err)
		return false
	}
	if raw == nil {
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		debuglog.Warnf("cache: undecodable %s envelope: %v", kind, err)
		return false
	}
	if env.Schema != schemaVersion {
		debuglog.Debugf("cache: %s entry has schema %d, want %d", kind, env.Schema, schemaVersion)
		return false
	}

	age := s.now().Sub(time.UnixMilli(env.Timestamp))
	if age > maxAge {
		return false
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		debuglog.Warnf("cache: undecodable %s data: %v", kind, err)
		return false
	}
	return true
}

// Invalidate removes the entry unconditionally. Called after mutations that
// make the cached snapshot provably stale.
func (s *Store) Invalidate(kind Kind) bool {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Delete([]byte(kind))
	})
	if err != nil {
		debuglog.Errorf("cache: invalidating %s entry: %v", kind, err)
		return false
	}
	return true
}

// CleanupExpired sweeps every known kind and drops entries past their TTL.
// Intended to run opportunistically, e.g. at startup; there is no timer.
func (s *Store) CleanupExpired() {
	for _, kind := range Kinds() {
		var raw []byte
		err := s.db.View(func(tx *bolt.Tx) error {
			if v := tx.Bucket(cacheBucket).Get([]byte(kind)); v != nil {
				raw = append(raw, v...)
			}
			return nil
		})
		if err != nil || raw == nil {
			continue
		}

		var env envelope
		expired := false
		if err := json.Unmarshal(raw, &env); err != nil || env.Schema != schemaVersion {
			expired = true
		} else if s.now().Sub(time.UnixMilli(env.Timestamp)) > kind.MaxAge() {
			expired = true
		}

		if expired {
			s.Invalidate(kind)
			debuglog.Debugf("cache: cleaned up expired %s entry", kind)
		}
	}
}

// ClearCache removes all cached resource snapshots, leaving auth and
// settings untouched.
func (s *Store) ClearCache() {
	for _, kind := range Kinds() {
		s.Invalidate(kind)
	}
}

// Session persistence. Unlike the resource cache these are
// correctness-relevant, so failures surface as errors.

func (s *Store) SaveSession(session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Put(sessionKey, data)
	})
}

// LoadSession returns the persisted session, or nil when none is stored.
func (s *Store) LoadSession() (*model.Session, error) {
	var session *model.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(authBucket).Get(sessionKey)
		if data == nil {
			return nil
		}
		session = &model.Session{}
		return json.Unmarshal(data, session)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return session, nil
}

func (s *Store) ClearSession() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Delete(sessionKey)
	})
}

func (s *Store) SetDeviceToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Put(deviceTokenKey, []byte(token))
	})
}

func (s *Store) DeviceToken() (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		token = string(tx.Bucket(authBucket).Get(deviceTokenKey))
		return nil
	})
	return token, err
}

// InstallationID returns the stable per-install identifier, generating and
// persisting one on first use.
func (s *Store) InstallationID() (string, error) {
	var id string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if v := b.Get(installationKey); v != nil {
			id = string(v)
			return nil
		}
		id = uuid.NewString()
		return b.Put(installationKey, []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("installation id: %w", err)
	}
	return id, nil
}

func (s *Store) SaveSettings(settings model.AppSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put(appSettingsKey, data)
	})
}

// Settings returns the persisted app settings, falling back to defaults
// when nothing is stored.
func (s *Store) Settings() (model.AppSettings, error) {
	settings := model.DefaultAppSettings()
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(settingsBucket).Get(appSettingsKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &settings)
	})
	if err != nil {
		return model.DefaultAppSettings(), fmt.Errorf("decoding settings: %w", err)
	}
	return settings, nil
}
