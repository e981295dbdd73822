// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/snapvault/vm-backup-service/pkg/util"
	"github.com/snapvault/vm-backup-service/pkg/workerpool"
)

// AppConfig 应用配置
type AppConfig struct {
	File     string         `yaml:"-"` // 配置文件路径，不序列化
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Backup   BackupSettings `yaml:"backup"`
	Storage  StorageConfig  `yaml:"storage"`
	Compute  ComputeConfig  `yaml:"compute"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File 日志文件路径，空则仅输出到 stderr
	File string `yaml:"file" default:"storage/logs/log.log"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production" default:"true"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// RunMode 运行模式
	RunMode string `yaml:"run-mode" default:"release"`
	// HttpPort HTTP 端口
	HttpPort string `yaml:"http-port" default:":9000"`
	// ReadTimeout 读取超时（秒）
	ReadTimeout int `yaml:"read-timeout" default:"60"`
	// WriteTimeout 写入超时（秒）
	WriteTimeout int `yaml:"write-timeout" default:"60"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Type 数据库类型
	Type string `yaml:"type" default:"sqlite"`
	// Path SQLite 数据库文件路径
	Path string `yaml:"path" default:"storage/database/db.sqlite3"`
	// UserName 用户名
	UserName string `yaml:"username"`
	// Password 密码
	Password string `yaml:"password"`
	// Host 主机
	Host string `yaml:"host"`
	// Name 数据库名
	Name string `yaml:"name"`
	// TablePrefix 表前缀
	TablePrefix string `yaml:"table-prefix"`
	// AutoMigrate 是否启用自动迁移
	AutoMigrate bool `yaml:"auto-migrate" default:"true"`
	// Charset 字符集
	Charset string `yaml:"charset" default:"utf8mb4"`
	// ParseTime 是否解析时间
	ParseTime bool `yaml:"parse-time" default:"true"`
	// MaxIdleConns 最大闲置连接数
	MaxIdleConns int `yaml:"max-idle-conns" default:"10"`
	// MaxOpenConns 最大打开连接数
	MaxOpenConns int `yaml:"max-open-conns" default:"100"`
	// ConnMaxLifetime 连接最大生命周期，支持格式：30m、1h
	ConnMaxLifetime string `yaml:"conn-max-lifetime" default:"30m"`
	// ConnMaxIdleTime 空闲连接最大生命周期
	ConnMaxIdleTime string `yaml:"conn-max-idle-time" default:"10m"`
}

// BackupSettings 备份协调核心的运行参数
type BackupSettings struct {
	// Timezone 到期判定使用的时区，IANA 名称，"Local" 表示系统时区
	Timezone string `yaml:"timezone" default:"Local"`
	// ScheduleInterval 调度器轮询间隔
	ScheduleInterval string `yaml:"schedule-interval" default:"30s"`
	// GCInterval 过期回收轮询间隔
	GCInterval string `yaml:"gc-interval" default:"5m"`
	// ReconcileInterval 快照/策略对账轮询间隔
	ReconcileInterval string `yaml:"reconcile-interval" default:"5m"`
	// Workers 备份/恢复并发执行上限
	Workers int `yaml:"workers" default:"4"`
	// JobRetention 已结束作业保留时长，支持格式：30d、24h
	JobRetention string `yaml:"job-retention" default:"30d"`
	// ReplicationSnapshotPrefix 复制引擎自建快照的名称前缀
	ReplicationSnapshotPrefix string `yaml:"replication-snapshot-prefix" default:"snapmirror"`
}

// StorageConfig 存储控制器接入配置
type StorageConfig struct {
	// Scheme 控制器 API 协议
	Scheme string `yaml:"scheme" default:"https"`
	// InsecureSkipVerify 是否跳过证书校验
	InsecureSkipVerify bool `yaml:"insecure-skip-verify" default:"false"`
	// Timeout 单次 API 调用超时
	Timeout string `yaml:"timeout" default:"60s"`
}

// ComputeConfig 计算集群接入配置
// 凭证通过环境变量注入，配置里只保留变量名
type ComputeConfig struct {
	// Scheme 集群 API 协议
	Scheme string `yaml:"scheme" default:"https"`
	// Port 集群 API 端口
	Port int `yaml:"port" default:"8006"`
	// InsecureSkipVerify 是否跳过证书校验
	InsecureSkipVerify bool `yaml:"insecure-skip-verify" default:"false"`
	// Timeout 单次 API 调用超时
	Timeout string `yaml:"timeout" default:"60s"`
	// TokenRef 指向存放 API Token 的环境变量名
	TokenRef string `yaml:"token-ref" default:"COMPUTE_API_TOKEN"`
}

// LoadConfig 从文件加载配置
// 返回配置实例和配置文件的绝对路径
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	c := new(AppConfig)
	c.File = realpath

	// 设置默认值
	if err := defaults.Set(c); err != nil {
		return nil, realpath, errors.Wrap(err, "set default config failed")
	}

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	if err := yaml.Unmarshal(file, c); err != nil {
		return nil, realpath, errors.Wrap(err, "parse config file failed")
	}

	// 再次设置默认值，以填充 YAML 中存在但值为空的字段
	if err := defaults.Set(c); err != nil {
		return nil, realpath, errors.Wrap(err, "re-set default config failed")
	}

	return c, realpath, nil
}

// Save 保存配置到文件
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}
	if err := os.WriteFile(c.File, data, 0644); err != nil {
		return errors.Wrap(err, "write config file failed")
	}
	return nil
}

// GetLocation 解析调度时区
func (c *AppConfig) GetLocation() *time.Location {
	if c.Backup.Timezone == "" || c.Backup.Timezone == "Local" {
		return time.Local
	}
	if loc, err := time.LoadLocation(c.Backup.Timezone); err == nil {
		return loc
	}
	return time.Local
}

// GetWorkerPoolConfig 获取 Worker Pool 配置
func (c *AppConfig) GetWorkerPoolConfig() workerpool.Config {
	cfg := workerpool.DefaultConfig()
	if c.Backup.Workers > 0 {
		cfg.MaxWorkers = c.Backup.Workers
	}
	return cfg
}

func (c *AppConfig) duration(s string, fallback time.Duration) time.Duration {
	if d, err := util.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}

// GetScheduleInterval 调度器轮询间隔
func (c *AppConfig) GetScheduleInterval() time.Duration {
	return c.duration(c.Backup.ScheduleInterval, 30*time.Second)
}

// GetGCInterval 过期回收轮询间隔
func (c *AppConfig) GetGCInterval() time.Duration {
	return c.duration(c.Backup.GCInterval, 5*time.Minute)
}

// GetReconcileInterval 对账轮询间隔
func (c *AppConfig) GetReconcileInterval() time.Duration {
	return c.duration(c.Backup.ReconcileInterval, 5*time.Minute)
}

// GetJobRetention 作业保留时长
func (c *AppConfig) GetJobRetention() time.Duration {
	return c.duration(c.Backup.JobRetention, 30*24*time.Hour)
}

// GetStorageTimeout 存储控制器 API 调用超时
func (c *AppConfig) GetStorageTimeout() time.Duration {
	return c.duration(c.Storage.Timeout, 60*time.Second)
}

// GetComputeTimeout 计算集群 API 调用超时
func (c *AppConfig) GetComputeTimeout() time.Duration {
	return c.duration(c.Compute.Timeout, 60*time.Second)
}
