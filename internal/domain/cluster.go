package domain

import (
	"time"
)

// Controller 一台存储控制器
// 凭证由外部的凭证提供者解析，这里只保留引用
type Controller struct {
	ID            int64
	Name          string
	Host          string
	CredentialRef string
	CreatedAt     time.Time
}

// Cluster 一个计算集群及其节点
type Cluster struct {
	ID        int64
	Name      string
	Hosts     []string
	CreatedAt time.Time
}

// EnabledVolume 卷启用表中的一行，存在即启用
type EnabledVolume struct {
	ID           int64
	ControllerID int64
	VolumeName   string
	// StorageName 集群侧对应的存储名称
	StorageName string
	CreatedAt   time.Time
}
