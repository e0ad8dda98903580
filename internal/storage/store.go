package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"seamcraft/internal/logging"
	"seamcraft/internal/world"
)

var log = logging.New("storage")

// SectorStore keeps one zstd-compressed record per world sector.
type SectorStore struct {
	db      *badger.DB
	worldID string
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

// Record is an encoded sector ready to be written.
type Record struct {
	WX, WZ int
	Data   []byte
}

// Open opens or creates the store in dir. Records of other world ids in the
// same directory are ignored.
func Open(dir, worldID string) (*SectorStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open sector store %s: %w", dir, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	log.Infof("opened %s for world %s", dir, worldID)
	return &SectorStore{db: db, worldID: worldID, enc: enc, dec: dec}, nil
}

func (st *SectorStore) Close() error {
	st.dec.Close()
	st.enc.Close()
	return st.db.Close()
}

func (st *SectorStore) key(wx, wz int) []byte {
	return []byte(fmt.Sprintf("sector:%s:%d:%d", st.worldID, wx, wz))
}

// Encode compresses a sector payload.
func (st *SectorStore) Encode(wx, wz int, blocks *[world.SectorVolume]world.Block, flat *world.Flatland) Record {
	return Record{WX: wx, WZ: wz, Data: st.enc.EncodeAll(encodePayload(blocks, flat), nil)}
}

// Decode fills dst from a compressed payload.
func (st *SectorStore) Decode(data []byte, dst *world.GenData) error {
	raw, err := st.dec.DecodeAll(data, make([]byte, 0, payloadSize))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decodePayload(raw, dst)
}

// Write stores records in one batch.
func (st *SectorStore) Write(recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	wb := st.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range recs {
		if err := wb.Set(st.key(r.WX, r.WZ), r.Data); err != nil {
			return fmt.Errorf("write sector %d,%d: %w", r.WX, r.WZ, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush %d sectors: %w", len(recs), err)
	}
	return nil
}

// Load fills dst with the stored sector and reports whether one existed.
func (st *SectorStore) Load(wx, wz int, dst *world.GenData) (bool, error) {
	var data []byte
	err := st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(st.key(wx, wz))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sector %d,%d: %w", wx, wz, err)
	}
	if err := st.Decode(data, dst); err != nil {
		return false, fmt.Errorf("sector %d,%d: %w", wx, wz, err)
	}
	return true, nil
}

// Delete removes a stored sector.
func (st *SectorStore) Delete(wx, wz int) error {
	return st.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(st.key(wx, wz))
	})
}

// Count returns the number of stored sectors of this world.
func (st *SectorStore) Count() (int, error) {
	prefix := []byte(fmt.Sprintf("sector:%s:", st.worldID))
	n := 0
	err := st.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
