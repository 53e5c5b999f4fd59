// Package resume implements the resume-state manifest: a sidecar file next
// to the PST archive recording which items have already been materialized
// to the output layout, so a second run over the same archive can skip
// them. Grounded on, and adapted from, the teacher's
// internal/state/state.go — "already uploaded to IMAP" becomes "already
// materialized to this layout root"; the bloom filter, hash, and
// atomic-save mechanics are unchanged.
package resume

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	defaultBloomCapacity     = 100_000
	defaultFalsePositiveRate = 0.001
)

// Manifest tracks the progress of one extraction run for resume.
type Manifest struct {
	PSTPath         string          `json:"pst_path"`
	PSTHash         string          `json:"pst_hash"`
	OutputRoot      string          `json:"output_root"`
	BloomData       string          `json:"bloom_data"`
	MaterializedCount int           `json:"materialized_count"`
	TotalCount      int             `json:"total_count"`
	CompletedFolder map[string]bool `json:"completed_folders"`

	bloomFilter *bloom.BloomFilter
	manifestPath string
	isResuming  bool
	mu          sync.Mutex
}

// New creates a fresh Manifest for pstPath/outputRoot. Call Load
// afterwards to pick up any existing sidecar.
func New(pstPath, outputRoot string) (*Manifest, error) {
	absPath, err := filepath.Abs(pstPath)
	if err != nil {
		return nil, fmt.Errorf("resume: absolute path for %s: %w", pstPath, err)
	}
	hash, err := hashPSTFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("resume: hash %s: %w", absPath, err)
	}

	return &Manifest{
		PSTPath:         absPath,
		PSTHash:         hash,
		OutputRoot:      outputRoot,
		CompletedFolder: make(map[string]bool),
		bloomFilter:     bloom.NewWithEstimates(defaultBloomCapacity, defaultFalsePositiveRate),
		manifestPath:    absPath + ".extract-state.json",
	}, nil
}

// Load reads any existing manifest sidecar, discarding it (and starting
// fresh) if it names a different PST hash or output root.
func (m *Manifest) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("resume: read %s: %w", m.manifestPath, err)
	}

	var loaded Manifest
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("resume: parse %s: %w", m.manifestPath, err)
	}
	if loaded.PSTHash != m.PSTHash || loaded.OutputRoot != m.OutputRoot {
		return nil
	}

	if loaded.BloomData != "" {
		raw, err := base64.StdEncoding.DecodeString(loaded.BloomData)
		if err != nil {
			return fmt.Errorf("resume: decode bloom filter: %w", err)
		}
		m.bloomFilter = &bloom.BloomFilter{}
		if err := m.bloomFilter.UnmarshalBinary(raw); err != nil {
			return fmt.Errorf("resume: unmarshal bloom filter: %w", err)
		}
	}

	m.MaterializedCount = loaded.MaterializedCount
	m.TotalCount = loaded.TotalCount
	m.CompletedFolder = loaded.CompletedFolder
	if m.CompletedFolder == nil {
		m.CompletedFolder = make(map[string]bool)
	}
	if m.MaterializedCount > 0 || len(m.CompletedFolder) > 0 {
		m.isResuming = true
	}
	return nil
}

// Save persists the manifest atomically (write to a temp file, then
// rename over the sidecar).
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bloomBytes, err := m.bloomFilter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("resume: marshal bloom filter: %w", err)
	}
	m.BloomData = base64.StdEncoding.EncodeToString(bloomBytes)

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("resume: serialize manifest: %w", err)
	}

	tmpPath := m.manifestPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("resume: write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, m.manifestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("resume: rename %s: %w", tmpPath, err)
	}
	return nil
}

// MarkMaterialized records blockKey (a stable per-item identifier, e.g.
// the decimal BlockID the walker passes) as written to the output layout.
func (m *Manifest) MarkMaterialized(blockKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bloomFilter.TestString(blockKey) {
		m.bloomFilter.AddString(blockKey)
		m.MaterializedCount++
	}
}

// IsMaterialized reports whether blockKey was already written in a prior
// run. May false-positive (bloom filter property) but never
// false-negative: a false positive means skipping an item that was never
// actually written, which would corrupt output, so callers that cannot
// tolerate that must not rely on this alone.
func (m *Manifest) IsMaterialized(blockKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isResuming {
		return false
	}
	return m.bloomFilter.TestString(blockKey)
}

// MarkFolderComplete records folderName as fully materialized.
func (m *Manifest) MarkFolderComplete(folderName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompletedFolder[folderName] = true
}

// IsFolderComplete reports whether folderName was fully materialized in a
// prior run.
func (m *Manifest) IsFolderComplete(folderName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isResuming {
		return false
	}
	return m.CompletedFolder[folderName]
}

// SetTotal records the total item count, for progress reporting.
func (m *Manifest) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalCount = total
}

// Progress returns the materialized/total item counts.
func (m *Manifest) Progress() (materialized, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MaterializedCount, m.TotalCount
}

// HasExistingProgress reports whether there is resumable state at all.
func (m *Manifest) HasExistingProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MaterializedCount > 0
}

// Clear removes the sidecar file and resets in-memory state.
func (m *Manifest) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.manifestPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	m.bloomFilter = bloom.NewWithEstimates(defaultBloomCapacity, defaultFalsePositiveRate)
	m.MaterializedCount = 0
	m.CompletedFolder = make(map[string]bool)
	return nil
}

// ManifestPath returns the sidecar's path.
func (m *Manifest) ManifestPath() string {
	return m.manifestPath
}

// hashPSTFile hashes the first MiB of the PST file at path: fast even for
// multi-gigabyte archives and sufficient to detect a different file.
func hashPSTFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyN(h, f, 1024*1024); err != nil && err != io.EOF {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
