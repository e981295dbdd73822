package model

import (
	"time"
)

// SnapMirrorRelation 复制关系表
type SnapMirrorRelation struct {
	ID                 int64     `gorm:"column:id;primaryKey" json:"id"`
	RelationUUID       string    `gorm:"column:relation_uuid;not null;index:idx_relation_uuid" json:"relationUuid"`
	SourceControllerID int64     `gorm:"column:source_controller_id;not null;index:idx_relation_source,priority:1" json:"sourceControllerId"`
	SourceVolume       string    `gorm:"column:source_volume;not null;index:idx_relation_source,priority:2" json:"sourceVolume"`
	DestControllerID   int64     `gorm:"column:dest_controller_id;not null" json:"destControllerId"`
	DestVolume         string    `gorm:"column:dest_volume;not null" json:"destVolume"`
	PolicyUUID         string    `gorm:"column:policy_uuid" json:"policyUuid"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName 返回表名
func (*SnapMirrorRelation) TableName() string {
	return "snapmirror_relation"
}

// SnapMirrorPolicy 复制策略缓存表
type SnapMirrorPolicy struct {
	ID                 int64     `gorm:"column:id;primaryKey" json:"id"`
	ControllerID       int64     `gorm:"column:controller_id;not null;index:idx_policy_uuid,priority:1" json:"controllerId"`
	UUID               string    `gorm:"column:uuid;not null;index:idx_policy_uuid,priority:2" json:"uuid"`
	Name               string    `gorm:"column:name" json:"name"`
	Scope              string    `gorm:"column:scope" json:"scope"`
	Type               string    `gorm:"column:type" json:"type"`
	NetworkCompression int64     `gorm:"column:network_compression;default:0" json:"networkCompression"`
	Throttle           int       `gorm:"column:throttle;default:0" json:"throttle"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName 返回表名
func (*SnapMirrorPolicy) TableName() string {
	return "snapmirror_policy"
}

// SnapMirrorRetention 策略保留规则表，Position 保序
type SnapMirrorRetention struct {
	ID       int64  `gorm:"column:id;primaryKey" json:"id"`
	PolicyID int64  `gorm:"column:policy_id;not null;index:idx_retention_policy" json:"policyId"`
	Label    string `gorm:"column:label;not null" json:"label"`
	Count    int    `gorm:"column:count;not null" json:"count"`
	Preserve int64  `gorm:"column:preserve;default:0" json:"preserve"`
	Warn     int64  `gorm:"column:warn;default:0" json:"warn"`
	Period   string `gorm:"column:period" json:"period"`
	Position int    `gorm:"column:position;not null" json:"position"`
}

// TableName 返回表名
func (*SnapMirrorRetention) TableName() string {
	return "snapmirror_retention"
}
