package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
)

const backfillBatchSize = 500

// canonicalColumns are added (nullable) to tables created before the current schema,
// so the data can be backfilled before AutoMigrate builds the unique lookup index.
var canonicalColumns = []struct {
	name string
	ddl  string
}{
	{"source_text", "TEXT"},
	{"content_hash", "VARCHAR(64)"},
	{"lookup_key", "VARCHAR(200)"},
	{"page_key", "VARCHAR(200)"},
	{"element_key", "VARCHAR(300)"},
	{"usage_count", "INTEGER DEFAULT 1"},
	{"last_used", "TIMESTAMP"},
}

// RunMigrations runs the one-shot data migrations that must happen before AutoMigrate.
// Every step only touches rows whose canonical values are still empty, so running it
// again is a no-op.
func RunMigrations(db *gorm.DB) error {
	table := models.TranslationRecord{}.TableName()
	if !db.Migrator().HasTable(table) {
		return nil
	}

	if err := prepareLegacySchema(db, table); err != nil {
		return err
	}
	if err := migrateLegacyTranslationFields(db, table); err != nil {
		return err
	}
	if err := backfillTranslationKeys(db); err != nil {
		return err
	}
	log.Println("Translation record migration complete")
	return nil
}

func prepareLegacySchema(db *gorm.DB, table string) error {
	for _, col := range canonicalColumns {
		if db.Migrator().HasColumn(table, col.name) {
			continue
		}
		log.Printf("Migrating %s: adding column %s", table, col.name)
		if err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.ddl)).Error; err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

// migrateLegacyTranslationFields copies values from the legacy original_text and
// translation_hash columns into the canonical source_text and content_hash columns.
func migrateLegacyTranslationFields(db *gorm.DB, table string) error {
	if db.Migrator().HasColumn(table, "original_text") {
		log.Println("Migrating translation_records: original_text -> source_text")

		result := db.Exec(`
			UPDATE translation_records
			SET source_text = original_text
			WHERE (source_text IS NULL OR source_text = '')
			  AND original_text IS NOT NULL AND original_text <> ''
		`)
		if result.Error != nil {
			log.Printf("Warning: failed to migrate original_text column: %v", result.Error)
		} else {
			log.Printf("Migrated %d translation_records rows (source_text)", result.RowsAffected)
		}
	}

	if db.Migrator().HasColumn(table, "translation_hash") {
		log.Println("Migrating translation_records: translation_hash -> content_hash")

		result := db.Exec(`
			UPDATE translation_records
			SET content_hash = translation_hash
			WHERE (content_hash IS NULL OR content_hash = '')
			  AND translation_hash IS NOT NULL AND translation_hash <> ''
		`)
		if result.Error != nil {
			log.Printf("Warning: failed to migrate translation_hash column: %v", result.Error)
		} else {
			log.Printf("Migrated %d translation_records rows (content_hash)", result.RowsAffected)
		}
	}

	// Rows that never had a usage counter start at one
	db.Exec(`UPDATE translation_records SET usage_count = 1 WHERE usage_count IS NULL OR usage_count < 1`)
	db.Exec(`UPDATE translation_records SET last_used = COALESCE(updated_at, created_at, CURRENT_TIMESTAMP) WHERE last_used IS NULL`)

	return nil
}

// backfillTranslationKeys computes content_hash and lookup_key for rows written
// before those columns existed. Legacy duplicates of an already-keyed pair get a
// suffixed key so the unique index can be built without dropping them.
func backfillTranslationKeys(db *gorm.DB) error {
	var fixed int64
	var records []models.TranslationRecord

	result := db.Where("content_hash IS NULL OR content_hash = '' OR lookup_key IS NULL OR lookup_key = ''").
		FindInBatches(&records, backfillBatchSize, func(tx *gorm.DB, batch int) error {
			for i := range records {
				rec := &records[i]
				if rec.ContentHash == "" {
					rec.ContentHash = models.ContentHash(rec.SourceText)
				}
				key := rec.LookupKey
				if key == "" {
					key = models.LookupKey(rec.ContentHash, rec.SourceLanguage, rec.TargetLanguage)
				}

				var taken int64
				tx.Model(&models.TranslationRecord{}).
					Where("lookup_key = ? AND id <> ?", key, rec.ID).
					Count(&taken)
				if taken > 0 {
					key = fmt.Sprintf("%s#legacy-%d", key, rec.ID)
				}

				err := tx.Model(&models.TranslationRecord{}).
					Where("id = ?", rec.ID).
					UpdateColumns(map[string]interface{}{
						"content_hash": rec.ContentHash,
						"lookup_key":   key,
					}).Error
				if err != nil {
					log.Printf("Warning: failed to backfill translation record %d: %v", rec.ID, err)
					continue
				}
				fixed++
			}
			return nil
		})
	if result.Error != nil {
		return result.Error
	}

	if fixed > 0 {
		log.Printf("Backfilled lookup keys for %d translation_records rows", fixed)
	}
	return nil
}
