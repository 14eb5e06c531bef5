// Package store keeps the version history of named JSON documents in a
// pebble database. Only the newest snapshot of a document is stored whole;
// every older version is reachable by rolling back the diffs committed since.
package store

import (
	"encoding/binary"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"

	"github.com/mcncl/jsondelta/internal/diff"
	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
)

// Key prefixes. A head key is 'H' followed by the document name, a version
// key is 'V', the name, a zero byte and the big endian version number.
const (
	headPrefix    = 'H'
	versionPrefix = 'V'
)

var writeOptions = pebble.Sync

// Head is the newest version of a document
type Head struct {
	Version  uint64
	Snapshot models.JSONValue
}

// Entry is one committed version. Version 0 is the initial commit and has an
// Undefined diff. Later versions carry the diff from their predecessor.
type Entry struct {
	Version   uint64
	ID        string
	Committed time.Time
	Diff      diff.Result
}

type headRecord struct {
	Version  uint64          `json:"version"`
	Snapshot json.RawMessage `json:"snapshot"`
}

type entryRecord struct {
	Version   uint64      `json:"version"`
	ID        string      `json:"id"`
	Committed time.Time   `json:"committed"`
	Diff      diff.Result `json:"diff"`
}

// Store is safe for concurrent use. Commits to the database are serialized.
type Store struct {
	db     *pebble.DB
	engine *diff.Engine
	logger log.Logger
	mu     sync.Mutex
}

// Open creates or opens the history database at path
func Open(path string, engine *diff.Engine, logger log.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("cannot open history at %s", path), err)
	}
	if engine == nil {
		engine = diff.NewEngine()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Store{db: db, engine: engine, logger: logger}, nil
}

// Close flushes and closes the database
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.NewStorageError("cannot close history", err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return errors.NewInputError(fmt.Sprintf("invalid document name %q", name), errors.ErrInvalidFilePath)
	}
	return nil
}

func headKey(name string) []byte {
	return append([]byte{headPrefix}, name...)
}

func versionKey(name string, version uint64) []byte {
	key := make([]byte, 0, len(name)+10)
	key = append(key, versionPrefix)
	key = append(key, name...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, version)
}

// get unmarshals the value stored under key into v. It reports false when
// the key is absent.
func (s *Store) get(key []byte, v interface{}) (bool, error) {
	val, closer, err := s.db.Get(key)
	if stderrors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewStorageError("cannot read history", err)
	}
	defer closer.Close()

	if err := json.Unmarshal(val, v); err != nil {
		return false, errors.NewStorageError("history record is corrupt", err)
	}
	return true, nil
}

// Head returns the newest version of the named document
func (s *Store) Head(name string) (Head, error) {
	if err := checkName(name); err != nil {
		return Head{}, err
	}

	var rec headRecord
	found, err := s.get(headKey(name), &rec)
	if err != nil {
		return Head{}, err
	}
	if !found {
		return Head{}, errors.NewStorageError(fmt.Sprintf("no history for %q", name), errors.ErrDocumentNotFound)
	}

	snapshot, err := parser.ParseBytes(rec.Snapshot)
	if err != nil {
		return Head{}, errors.NewStorageError("head snapshot is corrupt", err)
	}
	return Head{Version: rec.Version, Snapshot: snapshot}, nil
}

// Commit records doc as the next version of the named document and returns
// the version number together with the diff that was stored. The first
// commit stores doc whole as version 0. Committing a document equal to the
// head stores nothing and returns the head version with an Undefined diff.
func (s *Store) Commit(name string, doc models.JSONValue) (uint64, diff.Result, error) {
	if err := checkName(name); err != nil {
		return 0, diff.Undefined(), err
	}
	// diffing doc against itself rejects unsupported values and runaway nesting
	if _, err := s.engine.Diff(doc, doc); err != nil {
		return 0, diff.Undefined(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		version uint64
		change  = diff.Undefined()
	)
	head, err := s.Head(name)
	switch {
	case stderrors.Is(err, errors.ErrDocumentNotFound):
	case err != nil:
		return 0, diff.Undefined(), err
	default:
		change, err = s.engine.Diff(head.Snapshot, doc)
		if err != nil {
			return 0, diff.Undefined(), err
		}
		if change.IsUndefined() {
			level.Debug(s.logger).Log("msg", "commit skipped", "document", name, "version", head.Version)
			return head.Version, change, nil
		}
		version = head.Version + 1
	}

	snapshot, err := parser.Serialize(doc)
	if err != nil {
		return 0, diff.Undefined(), err
	}
	headValue, err := json.Marshal(headRecord{Version: version, Snapshot: json.RawMessage(snapshot)})
	if err != nil {
		return 0, diff.Undefined(), errors.NewStorageError("cannot encode head", err)
	}
	entryValue, err := json.Marshal(entryRecord{
		Version:   version,
		ID:        uuid.Must(uuid.NewV7()).String(),
		Committed: time.Now().UTC(),
		Diff:      change,
	})
	if err != nil {
		return 0, diff.Undefined(), errors.NewStorageError("cannot encode version", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(versionKey(name, version), entryValue, nil); err != nil {
		return 0, diff.Undefined(), errors.NewStorageError("cannot stage version", err)
	}
	if err := batch.Set(headKey(name), headValue, nil); err != nil {
		return 0, diff.Undefined(), errors.NewStorageError("cannot stage head", err)
	}
	if err := batch.Commit(writeOptions); err != nil {
		return 0, diff.Undefined(), errors.NewStorageError("cannot commit version", err)
	}

	level.Info(s.logger).Log("msg", "version committed", "document", name, "version", version)
	return version, change, nil
}

func (s *Store) entry(name string, version uint64) (Entry, error) {
	var rec entryRecord
	found, err := s.get(versionKey(name, version), &rec)
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, errors.NewStorageError(
			fmt.Sprintf("%q has no version %d", name, version), errors.ErrVersionNotFound)
	}
	return Entry(rec), nil
}

// Checkout rebuilds the named document as it was at version by rolling the
// head snapshot back through every newer diff
func (s *Store) Checkout(name string, version uint64) (models.JSONValue, error) {
	head, err := s.Head(name)
	if err != nil {
		return nil, err
	}
	if version > head.Version {
		return nil, errors.NewStorageError(
			fmt.Sprintf("%q has no version %d, head is %d", name, version, head.Version), errors.ErrVersionNotFound)
	}

	doc := head.Snapshot
	for v := head.Version; v > version; v-- {
		e, err := s.entry(name, v)
		if err != nil {
			return nil, err
		}
		doc, err = s.engine.Rollback(doc, e.Diff)
		if err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("cannot roll back version %d", v), err)
		}
	}
	return doc, nil
}

// Log lists every version of the named document, oldest first
func (s *Store) Log(name string) ([]Entry, error) {
	head, err := s.Head(name)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, head.Version+1)
	for v := uint64(0); v <= head.Version; v++ {
		e, err := s.entry(name, v)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
