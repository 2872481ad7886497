package domain

import (
	"errors"
	"strconv"
)

// Namespace selects the backing store of a persisted record.
type Namespace string

const (
	NamespaceLocal   Namespace = "local"
	NamespaceSession Namespace = "session"
)

// DefaultSchemaVersion is the version suffix used for physical storage keys.
const DefaultSchemaVersion = 1

var ErrStorageUnavailable = errors.New("storage unavailable")

// StoredRecord is a logical cache entry. Only one physical slot exists per
// key and version.
type StoredRecord struct {
	Namespace Namespace
	Key       string
	Version   int
	Payload   any
}

// PhysicalKey returns the key the record is stored under.
func (r StoredRecord) PhysicalKey() string {
	return PhysicalKey(r.Key, r.Version)
}

// PhysicalKey builds the versioned storage key, e.g. "theme_1".
func PhysicalKey(key string, version int) string {
	return key + "_" + strconv.Itoa(version)
}
