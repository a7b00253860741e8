package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/setup"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "modelibr.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := setup.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) storage.BlobStore {
	t.Helper()
	store, err := storage.NewLocalBlobStore(&config.StorageConfig{LocalBasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create local blob store: %v", err)
	}
	return store
}

func createTestModel(t *testing.T, db *gorm.DB, name string) *models.Model {
	t.Helper()
	model := &models.Model{Name: name}
	if err := repositories.NewModelRepository(db).Create(model); err != nil {
		t.Fatalf("failed to create test model: %v", err)
	}
	return model
}

func createTestVersion(t *testing.T, db *gorm.DB, modelID uint64, number int) *models.ModelVersion {
	t.Helper()
	version := &models.ModelVersion{ModelID: modelID, VersionNumber: number, DisplayOrder: number - 1}
	if err := repositories.NewModelVersionRepository(db).Create(version); err != nil {
		t.Fatalf("failed to create test version: %v", err)
	}
	return version
}

func hashOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func createTestFile(t *testing.T, db *gorm.DB, content, name string) *models.File {
	t.Helper()
	hash := hashOf(content)
	file := &models.File{
		Sha256Hash:   hash,
		OriginalName: name,
		StoredName:   hash,
		RelativePath: storage.ObjectPathForHash(hash),
		MimeType:     "application/octet-stream",
		SizeBytes:    int64(len(name)),
	}
	if err := repositories.NewFileRepository(db).Create(file); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return file
}

func linkFile(t *testing.T, db *gorm.DB, versionID, fileID uint64) {
	t.Helper()
	if _, err := repositories.NewModelVersionRepository(db).AddFile(versionID, fileID); err != nil {
		t.Fatalf("failed to link file %d to version %d: %v", fileID, versionID, err)
	}
}
