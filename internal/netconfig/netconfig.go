// Package netconfig persists the network configuration record.
package netconfig

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/softboxd/internal/kv"
)

const (
	// MaxNameLength is the longest accepted network name.
	MaxNameLength = 31

	bucketName = "config"
	recordKey  = "network"
)

var (
	ErrEmptyName    = errors.New("network name is empty")
	ErrNameTooLong  = fmt.Errorf("network name exceeds %d characters", MaxNameLength)
	ErrNameEncoding = errors.New("network name is not valid UTF-8")
)

// Config is the persisted network configuration.
type Config struct {
	NetworkName  string `json:"network_name"`
	IsConfigured bool   `json:"is_configured"`
	DeviceID     uint8  `json:"device_id"`
}

// Valid reports whether c describes a usable configuration.
func (c Config) Valid() bool {
	return c.IsConfigured && ValidateName(c.NetworkName) == nil
}

// ValidateName checks a submitted network name.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return ErrEmptyName
	case len(name) > MaxNameLength:
		return ErrNameTooLong
	case !utf8.ValidString(name):
		return ErrNameEncoding
	}
	return nil
}

// NewDeviceID picks a random node id. 0 and 255 are reserved.
func NewDeviceID() uint8 {
	return uint8(1 + rand.IntN(254))
}

// Store reads and writes the record in a kv bucket.
type Store struct {
	bucket kv.Bucket
}

// NewStore creates a store on b, normally the "config" bucket.
func NewStore(b kv.Bucket) *Store {
	return &Store{bucket: b}
}

// BucketName is the kv bucket holding the record.
func BucketName() string {
	return bucketName
}

// Load returns the stored configuration. A missing record is created with defaults
// (unconfigured, fresh device id). A record with an empty name is reported as
// unconfigured.
func (s *Store) Load() (Config, error) {
	var c Config
	err := s.bucket.Load(recordKey, &c)
	if errors.Is(err, kv.ErrNotFound) {
		c = Config{DeviceID: NewDeviceID()}
		log.Info().Uint8("device_id", c.DeviceID).Msg("No network config stored, creating defaults")
		if err := s.Save(c); err != nil {
			return c, err
		}
		return c, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to load network config: %w", err)
	}

	if c.IsConfigured && ValidateName(c.NetworkName) != nil {
		log.Warn().Str("network", c.NetworkName).Msg("Stored network config invalid, treating as unconfigured")
		c.IsConfigured = false
	}
	if c.DeviceID == 0 || c.DeviceID == 255 {
		c.DeviceID = NewDeviceID()
		log.Warn().Uint8("device_id", c.DeviceID).Msg("Stored device id reserved, assigning a new one")
		if err := s.Save(c); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

// Save persists c.
func (s *Store) Save(c Config) error {
	if err := s.bucket.Save(recordKey, c); err != nil {
		return fmt.Errorf("failed to save network config: %w", err)
	}
	log.Info().
		Str("network", c.NetworkName).
		Bool("configured", c.IsConfigured).
		Uint8("device_id", c.DeviceID).
		Msg("Network config saved")
	return nil
}

// Unconfigure clears the configured flag, keeping the name and device id.
func (s *Store) Unconfigure() error {
	c, err := s.Load()
	if err != nil {
		return err
	}
	c.IsConfigured = false
	return s.Save(c)
}
