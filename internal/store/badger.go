package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/bdi/internal/belief"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/cespare/xxhash/v2"
	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	prefixData  byte = 'd'
	prefixIndex byte = 'x'
	stripes          = 16
)

var (
	sequenceKey = []byte("!seq")

	errDuplicate = errors.New("duplicate literal")
	errMissing   = errors.New("missing literal")
)

// BadgerOptions configures the Badger belief storage.
type BadgerOptions struct {
	// Dir is required unless InMemory is set.
	Dir      string
	InMemory bool

	SyncWrites bool

	// GCInterval enables periodic value log garbage collection on disk.
	GCInterval     time.Duration
	GCDiscardRatio float64

	Logger *zap.Logger
}

// Badger persists beliefs in one BadgerDB shared by every view. Literals
// are stored under "d<view>\x00<key>\x00<seq>" in insertion order, with an
// index entry "x<view>\x00<key>\x00<literal>" used for duplicate detection.
type Badger struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *zap.Logger

	stop chan struct{}
	done chan struct{}
}

type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.logger.Debugf(format, args...) }
func (l badgerLogger) Debugf(string, ...interface{})               {}

// OpenBadger opens or creates the database.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger: directory is required for persistent storage")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", opts.Dir, err)
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logger: opts.Logger.Named("badger").Sugar()})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, 1000)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("badger sequence: %w", err)
	}

	b := &Badger{db: db, seq: seq, logger: opts.Logger}
	if opts.GCInterval > 0 && !opts.InMemory {
		ratio := opts.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		b.stop = make(chan struct{})
		b.done = make(chan struct{})
		go b.gc(opts.GCInterval, ratio)
	}
	return b, nil
}

func (b *Badger) gc(interval time.Duration, ratio float64) {
	defer close(b.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			for b.db.RunValueLogGC(ratio) == nil {
			}
		}
	}
}

// Close stops garbage collection and closes the database.
func (b *Badger) Close() error {
	if b.stop != nil {
		close(b.stop)
		<-b.done
	}
	if err := b.seq.Release(); err != nil {
		b.logger.Warn("failed to release badger sequence", zap.Error(err))
	}
	return b.db.Close()
}

// Factory returns a StorageFactory creating one storage per view path.
func (b *Badger) Factory() belief.StorageFactory {
	return func(path term.Path) belief.Storage {
		return b.Storage(path)
	}
}

// Storage returns the storage of the view at path, counting the literals
// already persisted for it.
func (b *Badger) Storage(path term.Path) *BadgerStorage {
	s := &BadgerStorage{
		db:     b,
		view:   string(path),
		logger: b.logger.With(zap.String("view", string(path))),
	}
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		return scan(txn, s.viewPrefix(prefixData), false, func(*badger.Item) error {
			n++
			return nil
		})
	})
	if err != nil {
		s.logger.Error("failed to count beliefs", zap.Error(err))
	}
	s.size.Store(int64(n))
	return s
}

// BadgerStorage implements belief.Storage for one view.
type BadgerStorage struct {
	db     *Badger
	view   string
	logger *zap.Logger
	size   atomic.Int64
	locks  [stripes]sync.Mutex
}

func (s *BadgerStorage) lock(key string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(key)%stripes]
}

func (s *BadgerStorage) viewPrefix(kind byte) []byte {
	k := make([]byte, 0, len(s.view)+2)
	k = append(k, kind)
	k = append(k, s.view...)
	return append(k, 0)
}

func (s *BadgerStorage) keyPrefix(kind byte, key string) []byte {
	k := s.viewPrefix(kind)
	k = append(k, key...)
	return append(k, 0)
}

func (s *BadgerStorage) dataKey(key string, seq []byte) []byte {
	return append(s.keyPrefix(prefixData, key), seq...)
}

func (s *BadgerStorage) indexKey(key string, encoded []byte) []byte {
	return append(s.keyPrefix(prefixIndex, key), encoded...)
}

func scan(txn *badger.Txn, prefix []byte, values bool, f func(*badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = values
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := f(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStorage) literals(prefix []byte) []*term.Literal {
	var out []*term.Literal
	err := s.db.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefix, true, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				l, err := DecodeLiteral(val)
				if err != nil {
					s.logger.Warn("skipping undecodable belief", zap.Error(err))
					return nil
				}
				out = append(out, l)
				return nil
			})
		})
	})
	if err != nil {
		s.logger.Error("failed to read beliefs", zap.Error(err))
	}
	return out
}

func (s *BadgerStorage) Stream() []*term.Literal {
	return s.literals(s.viewPrefix(prefixData))
}

func (s *BadgerStorage) Get(key string) []*term.Literal {
	return s.literals(s.keyPrefix(prefixData, key))
}

func (s *BadgerStorage) Contains(key string) bool {
	prefix := s.keyPrefix(prefixData, key)
	found := false
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Seek(prefix)
		found = it.ValidForPrefix(prefix)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to look up beliefs", zap.String("key", key), zap.Error(err))
	}
	return found
}

func (s *BadgerStorage) Put(l *term.Literal) bool {
	encoded, err := EncodeLiteral(l)
	if err != nil {
		s.logger.Warn("cannot persist belief", zap.String("literal", l.String()), zap.Error(err))
		return false
	}
	key := l.Key()
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	idx := s.indexKey(key, encoded)
	err = s.db.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(idx); err == nil {
			return errDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		n, err := s.db.seq.Next()
		if err != nil {
			return err
		}
		seq := binary.BigEndian.AppendUint64(nil, n)
		if err := txn.Set(s.dataKey(key, seq), encoded); err != nil {
			return err
		}
		return txn.Set(idx, seq)
	})
	switch {
	case errors.Is(err, errDuplicate):
		return false
	case err != nil:
		s.logger.Error("failed to put belief", zap.String("literal", l.String()), zap.Error(err))
		return false
	}
	s.size.Add(1)
	return true
}

func (s *BadgerStorage) Remove(l *term.Literal) bool {
	encoded, err := EncodeLiteral(l)
	if err != nil {
		return false
	}
	key := l.Key()
	mu := s.lock(key)
	mu.Lock()
	defer mu.Unlock()

	idx := s.indexKey(key, encoded)
	err = s.db.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(idx)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errMissing
		}
		if err != nil {
			return err
		}
		seq, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(s.dataKey(key, seq)); err != nil {
			return err
		}
		return txn.Delete(idx)
	})
	switch {
	case errors.Is(err, errMissing):
		return false
	case err != nil:
		s.logger.Error("failed to remove belief", zap.String("literal", l.String()), zap.Error(err))
		return false
	}
	s.size.Add(-1)
	return true
}

func (s *BadgerStorage) Clear() {
	for i := range s.locks {
		s.locks[i].Lock()
		defer s.locks[i].Unlock()
	}
	if err := s.db.db.DropPrefix(s.viewPrefix(prefixData), s.viewPrefix(prefixIndex)); err != nil {
		s.logger.Error("failed to clear beliefs", zap.Error(err))
		return
	}
	s.size.Store(0)
}

func (s *BadgerStorage) Size() int {
	return int(s.size.Load())
}
