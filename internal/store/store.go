// Package store persists simulated bus state in a LevelDB database.
//
// Keys start with a one byte table space followed by the 8-byte device
// address, so each kind of record can be scanned with a prefix iterator.
package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/arloliu/go-onewire/bus"
	"github.com/arloliu/go-onewire/memory"
	"github.com/arloliu/go-onewire/sim"
)

// TableSpace is the key prefix of one kind of record.
type TableSpace byte

const (
	// ImageKey is a table space for device memory images.
	ImageKey TableSpace = 'I'
	// PasswordKey is a table space for host password secrets.
	PasswordKey TableSpace = 'P'
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("store: not found")

type dbKey []byte

func toDBKey(t TableSpace, addr bus.Address, suffix ...byte) dbKey {
	key := make(dbKey, 0, 1+len(addr)+len(suffix))
	key = append(key, byte(t))
	key = append(key, addr[:]...)

	return append(key, suffix...)
}

// Store is a LevelDB backed record store.
type Store struct {
	db *leveldb.DB
}

// Open opens or creates the database in directory path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an empty database that lives in memory.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("store: open memory: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key dbKey) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}

	return v, err
}

// PutImage stores the memory image of the device at addr.
func (s *Store) PutImage(addr bus.Address, img []byte) error {
	return s.db.Put(toDBKey(ImageKey, addr), img, nil)
}

// Image returns the memory image of the device at addr.
func (s *Store) Image(addr bus.Address) ([]byte, error) {
	v, err := s.get(toDBKey(ImageKey, addr))
	if err != nil {
		return nil, fmt.Errorf("store: image of %s: %w", addr, err)
	}

	return v, nil
}

// Delete removes every record of the device at addr.
func (s *Store) Delete(addr bus.Address) error {
	batch := new(leveldb.Batch)
	for _, t := range []TableSpace{ImageKey, PasswordKey} {
		iter := s.db.NewIterator(util.BytesPrefix(toDBKey(t, addr)), nil)
		for iter.Next() {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return err
		}
	}

	return s.db.Write(batch, nil)
}

// Addresses returns the addresses that have a stored image, in key order.
func (s *Store) Addresses() ([]bus.Address, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{byte(ImageKey)}), nil)
	defer iter.Release()

	var out []bus.Address
	for iter.Next() {
		var addr bus.Address
		if copy(addr[:], iter.Key()[1:]) != len(addr) {
			return nil, fmt.Errorf("store: malformed image key %x", iter.Key())
		}
		out = append(out, addr)
	}

	return out, iter.Error()
}

var passwordKinds = []memory.PasswordKind{
	memory.ReadOnlyPassword,
	memory.ReadWritePassword,
	memory.WriteOnlyPassword,
}

// PutPasswords stores the host secrets for the device at addr. Unset
// secrets are removed.
func (s *Store) PutPasswords(addr bus.Address, p memory.Passwords) error {
	batch := new(leveldb.Batch)
	for _, kind := range passwordKinds {
		key := toDBKey(PasswordKey, addr, byte(kind))
		if secret := p.Get(kind); secret != nil {
			batch.Put(key, secret)
		} else {
			batch.Delete(key)
		}
	}

	return s.db.Write(batch, nil)
}

// Passwords returns the stored host secrets for the device at addr.
func (s *Store) Passwords(addr bus.Address) (memory.Passwords, error) {
	var p memory.Passwords
	for _, kind := range passwordKinds {
		secret, err := s.get(toDBKey(PasswordKey, addr, byte(kind)))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return p, err
		}
		switch kind {
		case memory.ReadOnlyPassword:
			p.ReadOnly = secret
		case memory.ReadWritePassword:
			p.ReadWrite = secret
		case memory.WriteOnlyPassword:
			p.WriteOnly = secret
		}
	}

	return p, nil
}

// SaveBus stores the image of every device on a in one batch.
func (s *Store) SaveBus(a *sim.Adapter) error {
	batch := new(leveldb.Batch)
	for _, d := range a.Devices() {
		batch.Put(toDBKey(ImageKey, d.Address()), d.Image())
	}

	return s.db.Write(batch, nil)
}

// LoadBus attaches a simulated device for every stored image to a and
// returns how many were attached.
func (s *Store) LoadBus(a *sim.Adapter) (int, error) {
	addrs, err := s.Addresses()
	if err != nil {
		return 0, err
	}

	for i, addr := range addrs {
		dev, ok := sim.New(addr)
		if !ok {
			return i, fmt.Errorf("store: no simulation for family 0x%02X of %s", addr.Family(), addr)
		}
		img, err := s.Image(addr)
		if err != nil {
			return i, err
		}
		if err := dev.LoadImage(img); err != nil {
			return i, fmt.Errorf("store: %s: %w", addr, err)
		}
		a.Attach(dev)
	}

	return len(addrs), nil
}
