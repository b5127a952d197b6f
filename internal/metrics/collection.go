package metrics

import (
	"log"

	"gorm.io/gorm"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
)

// UpdateTranslationMetrics queries the database and updates store-related Prometheus metrics.
// Call this after retention sweeps or periodically.
func UpdateTranslationMetrics(db *gorm.DB) {
	if db == nil {
		return
	}

	var total int64
	if err := db.Model(&models.TranslationRecord{}).Count(&total).Error; err != nil {
		log.Printf("Metrics: failed to count translation records: %v", err)
	} else {
		TranslationRecordsTotal.Set(float64(total))
	}

	type targetCount struct {
		TargetLanguage string
		Count          int64
	}
	var counts []targetCount
	if err := db.Model(&models.TranslationRecord{}).
		Select("target_language, COUNT(*) as count").
		Group("target_language").
		Scan(&counts).Error; err != nil {
		log.Printf("Metrics: failed to count records by language: %v", err)
		return
	}
	TranslationRecordsByTarget.Reset()
	for _, c := range counts {
		TranslationRecordsByTarget.WithLabelValues(c.TargetLanguage).Set(float64(c.Count))
	}
}
