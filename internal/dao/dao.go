// Package dao 实现基于 gorm 的仓储层
package dao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/model"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Type sqlite 或 mysql
	Type string
	// Path SQLite 数据库文件路径
	Path            string
	UserName        string
	Password        string
	Host            string
	Name            string
	TablePrefix     string
	AutoMigrate     bool
	Charset         string
	ParseTime       bool
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	RunMode         string
}

// busyRetryAttempts 存储忙碌类错误的本地重试次数上限
const busyRetryAttempts = 3

// Dao 绑定到一个数据库句柄的仓储集合
type Dao struct {
	db     *gorm.DB
	logger *zap.Logger
	repos  *domain.Repositories
}

// New 创建 Dao 实例
func New(db *gorm.DB, logger *zap.Logger) *Dao {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dao{db: db, logger: logger}
	d.repos = buildRepos(d)
	return d
}

func buildRepos(d *Dao) *domain.Repositories {
	return &domain.Repositories{
		Schedules: NewScheduleRepository(d),
		Jobs:      NewJobRepository(d),
		Backups:   NewBackupRecordRepository(d),
		Snapshots: NewSnapshotRepository(d),
		Mirrors:   NewSnapMirrorRepository(d),
		Clusters:  NewClusterRepository(d),
		Volumes:   NewVolumeRepository(d),
	}
}

// DB 返回底层数据库句柄
func (d *Dao) DB() *gorm.DB {
	return d.db
}

// Repos 返回绑定到当前句柄的仓储集合
func (d *Dao) Repos() *domain.Repositories {
	return d.repos
}

// Transaction 在单个本地事务中执行 fn
// 忙碌类错误（SQLite busy/locked、MySQL 锁等待/死锁）在事务边界整体重试，
// 最多 busyRetryAttempts 次；其余错误直接回滚并返回
func (d *Dao) Transaction(ctx context.Context, fn func(*domain.Repositories) error) error {
	op := func() error {
		err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txDao := &Dao{db: tx, logger: d.logger}
			txDao.repos = buildRepos(txDao)
			return fn(txDao.repos)
		})
		if err != nil && !IsBusyError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, busyRetryAttempts-1), ctx))
}

// IsBusyError 判断是否属于可本地重试的存储争用错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "lock wait timeout") ||
		strings.Contains(msg, "deadlock found")
}

// NewDBEngineWithConfig 按配置创建数据库引擎
func NewDBEngineWithConfig(cfg DatabaseConfig, lg *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.UserName, cfg.Password, cfg.Host, cfg.Name, cfg.Charset, cfg.ParseTime)
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		// _pragma 打开 busy_timeout，减少但不消除 busy 错误
		dsn := cfg.Path + "?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)"
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	logLevel := gormlogger.Warn
	if cfg.RunMode == "debug" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   cfg.TablePrefix,
			SingularTable: true,
		},
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}

	if cfg.AutoMigrate {
		if err := model.AutoMigrateAll(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}
