package domain

import (
	"time"
)

// SnapMirrorRelation 一条复制配对（源卷 -> 目标卷）
// 核心只读，周期性与存储侧的真实关系对账
type SnapMirrorRelation struct {
	ID                 int64
	RelationUUID       string
	SourceControllerID int64
	SourceVolume       string
	DestControllerID   int64
	DestVolume         string
	PolicyUUID         string
	UpdatedAt          time.Time
}

// Equal compares the synchronized fields, ignoring the local row ID and timestamp.
func (r *SnapMirrorRelation) Equal(other *SnapMirrorRelation) bool {
	if other == nil {
		return false
	}
	return r.RelationUUID == other.RelationUUID &&
		r.SourceControllerID == other.SourceControllerID &&
		r.SourceVolume == other.SourceVolume &&
		r.DestControllerID == other.DestControllerID &&
		r.DestVolume == other.DestVolume &&
		r.PolicyUUID == other.PolicyUUID
}

// SnapMirrorPolicy 存储侧复制策略的本地缓存
type SnapMirrorPolicy struct {
	ID           int64
	ControllerID int64
	UUID         string
	Name         string
	Scope        string
	Type         string
	// NetworkCompression 传输压缩开关
	NetworkCompression bool
	Throttle           int
	Retentions         []SnapMirrorRetention
	UpdatedAt          time.Time
}

// SnapMirrorRetention 策略中的一条保留规则，顺序有意义
type SnapMirrorRetention struct {
	ID       int64
	PolicyID int64
	Label    string
	Count    int
	Preserve bool
	Warn     bool
	// Period 可选的锁定周期（存储侧格式，如 "PT12H"）
	Period   string
	Position int
}

// Equal compares the scalar policy fields and the ordered retention list.
func (p *SnapMirrorPolicy) Equal(other *SnapMirrorPolicy) bool {
	if other == nil {
		return false
	}
	if p.Name != other.Name ||
		p.Scope != other.Scope ||
		p.Type != other.Type ||
		p.NetworkCompression != other.NetworkCompression ||
		p.Throttle != other.Throttle {
		return false
	}
	if len(p.Retentions) != len(other.Retentions) {
		return false
	}
	for i := range p.Retentions {
		a, b := p.Retentions[i], other.Retentions[i]
		if a.Label != b.Label ||
			a.Count != b.Count ||
			a.Preserve != b.Preserve ||
			a.Warn != b.Warn ||
			a.Period != b.Period {
			return false
		}
	}
	return true
}
