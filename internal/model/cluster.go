package model

import (
	"time"
)

// Cluster 计算集群表
type Cluster struct {
	ID   int64  `gorm:"column:id;primaryKey" json:"id"`
	Name string `gorm:"column:name;not null" json:"name"`
	// Hosts 逗号分隔的节点列表
	Hosts     string    `gorm:"column:hosts" json:"hosts"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName 返回表名
func (*Cluster) TableName() string {
	return "cluster"
}

// Controller 存储控制器表
type Controller struct {
	ID            int64     `gorm:"column:id;primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null" json:"name"`
	Host          string    `gorm:"column:host;not null" json:"host"`
	CredentialRef string    `gorm:"column:credential_ref" json:"credentialRef"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName 返回表名
func (*Controller) TableName() string {
	return "controller"
}

// EnabledVolume 卷启用表，存在即启用
type EnabledVolume struct {
	ID           int64     `gorm:"column:id;primaryKey" json:"id"`
	ControllerID int64     `gorm:"column:controller_id;not null;index:idx_enabled_volume,priority:1" json:"controllerId"`
	VolumeName   string    `gorm:"column:volume_name;not null;index:idx_enabled_volume,priority:2" json:"volumeName"`
	StorageName  string    `gorm:"column:storage_name" json:"storageName"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName 返回表名
func (*EnabledVolume) TableName() string {
	return "enabled_volume"
}
