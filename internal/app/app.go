package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/internal/dao"
	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/service"
	"github.com/snapvault/vm-backup-service/pkg/workerpool"
)

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config *AppConfig
	logger *zap.Logger
	DB     *gorm.DB
	Dao    *dao.Dao

	// 并发控制组件
	workerPool *workerpool.Pool

	// 外部系统客户端
	Storage domain.StorageClient
	Compute domain.ComputeClient

	// Service 层
	Services *service.Services

	// StartTime 进程启动时间，健康检查用
	StartTime time.Time
}

// NewApp 创建应用容器实例
// 初始化所有依赖并进行依赖注入
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
// db: 数据库连接（必须）
// storage / compute: 外部系统客户端（必须）
func NewApp(cfg *AppConfig, logger *zap.Logger, db *gorm.DB, storage domain.StorageClient, compute domain.ComputeClient) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if storage == nil || compute == nil {
		return nil, fmt.Errorf("storage and compute clients are required")
	}

	a := &App{
		config:    cfg,
		logger:    logger,
		DB:        db,
		Storage:   storage,
		Compute:   compute,
		StartTime: time.Now(),
	}

	// 初始化 Worker Pool
	wpConfig := cfg.GetWorkerPoolConfig()
	a.workerPool = workerpool.New(&wpConfig, logger)

	// 初始化 DAO
	a.Dao = dao.New(db, logger)

	// 初始化 Service 层（依赖注入）
	svcConfig := service.Config{
		Location:                  cfg.GetLocation(),
		Tick:                      cfg.GetScheduleInterval(),
		JobRetention:              cfg.GetJobRetention(),
		ReplicationSnapshotPrefix: cfg.Backup.ReplicationSnapshotPrefix,
	}
	a.Services = service.New(svcConfig, a.Dao, storage, compute, a.workerPool, logger)

	logger.Info("app container initialized",
		zap.Int("workers", wpConfig.MaxWorkers),
		zap.Duration("scheduleInterval", svcConfig.Tick))

	return a, nil
}

// DatabaseConfigForDao 把配置文件中的数据库段转换为 dao 层配置
func (c *AppConfig) DatabaseConfigForDao() dao.DatabaseConfig {
	lifetime := int(c.duration(c.Database.ConnMaxLifetime, 0).Seconds())
	idleTime := int(c.duration(c.Database.ConnMaxIdleTime, 0).Seconds())

	return dao.DatabaseConfig{
		Type:            c.Database.Type,
		Path:            c.Database.Path,
		UserName:        c.Database.UserName,
		Password:        c.Database.Password,
		Host:            c.Database.Host,
		Name:            c.Database.Name,
		TablePrefix:     c.Database.TablePrefix,
		AutoMigrate:     c.Database.AutoMigrate,
		Charset:         c.Database.Charset,
		ParseTime:       c.Database.ParseTime,
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: lifetime,
		ConnMaxIdleTime: idleTime,
		RunMode:         c.Server.RunMode,
	}
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// WorkerPool 获取工作池
func (a *App) WorkerPool() *workerpool.Pool {
	return a.workerPool
}

// Shutdown 排空工作池并关闭数据库连接
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.workerPool.Shutdown(ctx); err != nil {
		a.logger.Warn("worker pool drain incomplete", zap.Error(err))
	}

	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.logger.Info("database connection closed")
	}
	return nil
}
