// Package models defines server-side data models persisted in the database.
package models

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Lifecycle tells which deduplicating store owns a logical file.
type Lifecycle string

const (
	// Permanent files are never deleted by the store.
	Permanent Lifecycle = "permanent"
	// Ephemeral files may be tombstoned and are later garbage-collected.
	Ephemeral Lifecycle = "ephemeral"
)

// Valid reports whether l is one of the known lifecycles.
func (l Lifecycle) Valid() bool {
	return l == Permanent || l == Ephemeral
}

// BackingKind identifies the physical store a blob lives in.
type BackingKind string

const (
	BackingS3     BackingKind = "s3"
	BackingDisk   BackingKind = "disk"
	BackingBadger BackingKind = "badger"
	BackingMemory BackingKind = "memory"
)

// FileMapping links a logical file to the physical blob holding its bytes.
// Many mappings may share one PhysicalKey.
type FileMapping struct {
	// FileID is the only external handle of the file. Assigned at upload.
	FileID uuid.UUID
	// Lifecycle is fixed at upload.
	Lifecycle Lifecycle
	// BackingKind is the kind of store PhysicalKey belongs to.
	BackingKind BackingKind
	// PhysicalKey is the opaque backing-store key of the blob.
	PhysicalKey string
	// SHA256 and SHA512 are lowercase hex digests of the content.
	SHA256 string
	SHA512 string
	// SizeBytes is the number of bytes uploaded.
	SizeBytes int64
	// Tombstoned marks an ephemeral file as logically deleted, pending GC.
	Tombstoned bool
	// CreatedAt orders dedup candidates; set by the repository on insert.
	CreatedAt time.Time
}

// Download is a readable stream of known length. Length is the full length
// of the physical object even when Body covers only a range of it.
type Download struct {
	Body   io.ReadCloser
	Length int64
}
