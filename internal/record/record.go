package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which recording path produced a transaction.
type Source string

const (
	SourceDeviceFeed      Source = "device-feed"
	SourceLegacyImport    Source = "legacy-import"
	SourceDocumentExtract Source = "document-extract"
)

// Valid reports whether s is one of the recognized source tags.
func (s Source) Valid() bool {
	switch s {
	case SourceDeviceFeed, SourceLegacyImport, SourceDocumentExtract:
		return true
	}
	return false
}

// TransactionRecord is one point-of-sale transaction as delivered by the
// upstream ingestion layer. Records are immutable: a correction produces a
// new record that supersedes this one, never a mutation.
type TransactionRecord struct {
	ID        string          `json:"id" validate:"required"`
	Source    Source          `json:"source" validate:"required"`
	Timestamp time.Time       `json:"timestamp"`
	Amount    decimal.Decimal `json:"amount"`
	Quantity  int             `json:"quantity"`

	// Optional free-text audio transcript from the device feed.
	Transcript string `json:"transcript,omitempty"`

	// Optional structured fields.
	BrandName string   `json:"brand_name,omitempty"`
	SKU       string   `json:"sku,omitempty"`
	StoreID   string   `json:"store_id,omitempty"`
	DeviceID  string   `json:"device_id,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Checksum, when present, must equal PayloadChecksum(record).
	Checksum string `json:"checksum,omitempty"`
}

// HasTranscript reports whether the record carries a non-empty transcript.
func (r *TransactionRecord) HasTranscript() bool {
	return r.Transcript != ""
}

// PayloadChecksum recomputes the integrity checksum over the identity-bearing
// fields. The 16-hex-char truncation matches what the recording devices emit.
func PayloadChecksum(r *TransactionRecord) string {
	content := fmt.Sprintf("%s-%s-%s-%s",
		r.StoreID, r.Timestamp.UTC().Format(time.RFC3339), r.Amount.String(), r.Source)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// ContentDigest hashes every content-bearing field, not just the identity
// fields. Two versions of the same event with a different transcript, brand,
// SKU or quantity carry different digests even when their identity checksums
// agree.
func ContentDigest(r *TransactionRecord) string {
	lat, lon := "", ""
	if r.Latitude != nil {
		lat = fmt.Sprintf("%.6f", *r.Latitude)
	}
	if r.Longitude != nil {
		lon = fmt.Sprintf("%.6f", *r.Longitude)
	}
	content := fmt.Sprintf("%s-%s-%s-%s-%d-%s-%s-%s-%s-%s-%s",
		r.StoreID, r.Timestamp.UTC().Format(time.RFC3339), r.Amount.String(), r.Source,
		r.Quantity, r.Transcript, r.BrandName, r.SKU, r.DeviceID, lat, lon)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// PairKey derives the duplicate-pair identity key for two records judged to
// refer to the same real-world event. The timestamp is bucketed to the
// duplicate window so both versions land on the same key regardless of which
// recording path stamped them.
func PairKey(r *TransactionRecord, window time.Duration) string {
	bucket := int64(0)
	if window > 0 {
		bucket = r.Timestamp.UTC().Unix() / int64(window.Seconds())
	} else {
		bucket = r.Timestamp.UTC().Unix()
	}
	content := fmt.Sprintf("%s-%d-%s", r.StoreID, bucket, r.Amount.String())
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// PairKeyFor derives the identity key for a detected pair. It is
// commutative: the two records are ordered by identifier before hashing, so
// swapping the arguments yields the same key and the same preserve-both
// suffixes downstream.
func PairKeyFor(a, b *TransactionRecord, window time.Duration) string {
	first, second := a, b
	if second.ID < first.ID {
		first, second = second, first
	}

	earliest := first.Timestamp
	if second.Timestamp.Before(earliest) {
		earliest = second.Timestamp
	}
	bucket := earliest.UTC().Unix()
	if window > 0 {
		bucket /= int64(window.Seconds())
	}

	content := fmt.Sprintf("%s-%d-%s-%s", first.StoreID, bucket, first.ID, second.ID)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}
