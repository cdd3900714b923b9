package db

import (
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type cachedCatalog struct {
	Size    int64
	ModTime time.Time
	Version string
	Entries []GameEntry
}

// CatalogManager loads catalogs and keeps the parsed result in the cache db,
// reparsing only when the DAT file size or modification time changes.
type CatalogManager struct {
	db     *PersistentDB
	fs     afero.Fs
	logger *zap.SugaredLogger
}

func NewCatalogManager(baseFolder string, fs afero.Fs, l *zap.SugaredLogger) (*CatalogManager, error) {
	pdb, err := NewPersistentDB(baseFolder, l)
	if err != nil {
		return nil, err
	}
	return &CatalogManager{db: pdb, fs: fs, logger: l}, nil
}

func (m *CatalogManager) Close() {
	m.db.Close()
}

func (m *CatalogManager) Load(path string) (*Catalog, error) {
	info, err := m.fs.Stat(path)
	if err != nil {
		return nil, &NotFoundError{Path: path, Err: err}
	}

	key := filepath.Clean(path)
	cached := cachedCatalog{}
	found, err := m.db.GetEntry(DB_TABLE_CATALOGS, key, &cached)
	if err != nil {
		m.logger.Warnf("ignoring unreadable cache entry for [%v] - %v", path, err)
	}
	if err == nil && found && cached.Size == info.Size() && cached.ModTime.Equal(info.ModTime()) {
		m.logger.Debugf("using cached catalog for [%v]", path)
		return NewCatalog(path, cached.Version, cached.Entries), nil
	}

	m.logger.Infof("Parsing DAT file: %v", path)
	catalog, err := LoadCatalog(m.fs, path)
	if err != nil {
		return nil, err
	}

	err = m.db.AddEntry(DB_TABLE_CATALOGS, key, cachedCatalog{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Version: catalog.Version,
		Entries: catalog.Entries(),
	})
	if err != nil {
		m.logger.Warnf("failed to cache catalog [%v] - %v", path, err)
	}
	return catalog, nil
}

// Invalidate drops the cached parse of one catalog.
func (m *CatalogManager) Invalidate(path string) error {
	return m.db.DeleteEntry(DB_TABLE_CATALOGS, filepath.Clean(path))
}

// Clear drops every cached catalog.
func (m *CatalogManager) Clear() error {
	return m.db.ClearTable(DB_TABLE_CATALOGS)
}
