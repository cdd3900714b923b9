package db

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/rotool/resolution-override-tool/settings"
	"go.uber.org/zap"
)

const (
	DB_FILENAME           = "rot.db"
	DB_INTERNAL_TABLENAME = "internal-metadata"
	DB_TABLE_CATALOGS     = "catalogs"
)

type PersistentDB struct {
	db     *bolt.DB
	logger *zap.SugaredLogger
}

func NewPersistentDB(baseFolder string, l *zap.SugaredLogger) (*PersistentDB, error) {
	// It will be created if it doesn't exist.
	db, err := bolt.Open(filepath.Join(baseFolder, DB_FILENAME), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db in [%v] - %w", baseFolder, err)
	}

	//reset cached data written by another version
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(DB_INTERNAL_TABLENAME))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		if string(b.Get([]byte("app_version"))) != settings.ROT_VERSION {
			if tx.Bucket([]byte(DB_TABLE_CATALOGS)) != nil {
				if err := tx.DeleteBucket([]byte(DB_TABLE_CATALOGS)); err != nil {
					return err
				}
			}
		}
		return b.Put([]byte("app_version"), []byte(settings.ROT_VERSION))
	})
	if err != nil {
		l.Warnf("failed to save app_version - %v", err)
	}

	return &PersistentDB{db: db, logger: l}, nil
}

func (pd *PersistentDB) Close() {
	if err := pd.db.Close(); err != nil {
		pd.logger.Warnf("failed to close cache db - %v", err)
	}
}

func (pd *PersistentDB) ClearTable(tableName string) error {
	return pd.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(tableName)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(tableName))
	})
}

func (pd *PersistentDB) AddEntry(tableName string, key string, value interface{}) error {
	var bytesBuff bytes.Buffer
	if err := gob.NewEncoder(&bytesBuff).Encode(value); err != nil {
		return err
	}
	return pd.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(tableName))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return b.Put([]byte(key), bytesBuff.Bytes())
	})
}

// GetEntry decodes the entry into value. found is false when the table or key is missing.
func (pd *PersistentDB) GetEntry(tableName string, key string, value interface{}) (found bool, err error) {
	err = pd.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tableName))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return gob.NewDecoder(bytes.NewReader(v)).Decode(value)
	})
	return found, err
}

func (pd *PersistentDB) DeleteEntry(tableName string, key string) error {
	return pd.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(tableName))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
