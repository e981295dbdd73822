// Package model 定义数据模型
package model

import (
	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB, key string) error {
	switch key {

	case "Schedule":
		return db.AutoMigrate(Schedule{})

	case "Job":
		return db.AutoMigrate(Job{}, JobVMResult{}, JobVMLog{})

	case "BackupRecord":
		return db.AutoMigrate(BackupRecord{})

	case "TrackedSnapshot":
		return db.AutoMigrate(TrackedSnapshot{})

	case "SnapMirror":
		return db.AutoMigrate(SnapMirrorRelation{}, SnapMirrorPolicy{}, SnapMirrorRetention{})

	case "Cluster":
		return db.AutoMigrate(Cluster{}, Controller{}, EnabledVolume{})
	}
	return nil
}

// AutoMigrateAll 迁移全部表
func AutoMigrateAll(db *gorm.DB) error {
	for _, key := range []string{"Schedule", "Job", "BackupRecord", "TrackedSnapshot", "SnapMirror", "Cluster"} {
		if err := AutoMigrate(db, key); err != nil {
			return err
		}
	}
	return nil
}
