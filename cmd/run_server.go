package cmd

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/global"
	internalApp "github.com/snapvault/vm-backup-service/internal/app"
	"github.com/snapvault/vm-backup-service/internal/client"
	"github.com/snapvault/vm-backup-service/internal/dao"
	"github.com/snapvault/vm-backup-service/internal/routers"
	"github.com/snapvault/vm-backup-service/internal/task"
	pkgApp "github.com/snapvault/vm-backup-service/pkg/app"
	"github.com/snapvault/vm-backup-service/pkg/logger"
	"github.com/snapvault/vm-backup-service/pkg/safe_close"
)

// DefaultShutdownTimeout default shutdown timeout duration
// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

type Server struct {
	logger     *zap.Logger             // Logger // 日志对象
	config     *internalApp.AppConfig  // App configuration (injected dependency) // 应用配置（注入的依赖）
	db         *gorm.DB                // Database connection // 数据库连接
	ut         *ut.UniversalTranslator // Translator // 翻译器
	httpServer *http.Server
	sc         *safe_close.SafeClose
	app        *internalApp.App // App Container
}

func NewServer(runEnv *runFlags) (*Server, error) {

	// 使用 LoadConfig 直接加载配置到 AppConfig
	appConfig, configRealpath, err := internalApp.LoadConfig(runEnv.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 确定运行模式
	runMode := runEnv.runMode
	if len(runMode) <= 0 {
		runMode = appConfig.Server.RunMode
	}

	if len(runMode) > 0 {
		gin.SetMode(runMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: appConfig,
		sc:     safe_close.NewSafeClose(),
	}

	// 初始化日志器（使用注入的配置）
	if err := initLoggerWithConfig(s, appConfig); err != nil {
		return nil, fmt.Errorf("initLogger: %w", err)
	}
	global.Logger = s.logger

	// 初始化数据库（使用注入的配置）
	db, err := dao.NewDBEngineWithConfig(appConfig.DatabaseConfigForDao(), s.logger)
	if err != nil {
		return nil, fmt.Errorf("initDatabase: %w", err)
	}
	s.db = db

	// 初始化外部系统客户端
	// 存储客户端按 controllerID 从集群仓储解析主机与凭证引用
	d := dao.New(db, s.logger)
	credentials := client.EnvCredentialProvider{}
	storage := client.NewNetAppClient(storageClientConfig(appConfig), d.Repos().Clusters, credentials, s.logger)
	compute := client.NewProxmoxClient(computeClientConfig(appConfig), credentials, appConfig.Compute.TokenRef, s.logger)

	// 初始化 App Container（直接使用 AppConfig）
	app, err := internalApp.NewApp(appConfig, s.logger, db, storage, compute)
	if err != nil {
		return nil, fmt.Errorf("failed to create app container: %w", err)
	}
	s.app = app

	// 初始化验证器
	uni, err := initValidatorWithLogger(s.logger)
	if err != nil {
		return nil, fmt.Errorf("initValidator: %w", err)
	}
	s.ut = uni

	// 启动调度器
	initScheduler(s)

	banner := `
 _    ____  ___   ____             __
| |  / /  |/  /  / __ )____ ______/ /___  ______
| | / / /|_/ /  / __  / __ ` + "`" + `/ ___/ //_/ / / / __ \
| |/ / /  / /  / /_/ / /_/ / /__/ ,< / /_/ / /_/ /
|___/_/  /_/  /_____/\__,_/\___/_/|_|\__,_/ .___/
                                         /_/       `
	s.logger.Warn(fmt.Sprintf("%s\n\n%s v%s\nGit: %s\nBuildTime: %s\n", banner, internalApp.Name, internalApp.Version, internalApp.GitTag, internalApp.BuildTime))

	s.logger.Warn("config loaded", zap.String("path", configRealpath))

	// 启动 HTTP API 服务器
	if httpAddr := appConfig.Server.HttpPort; len(httpAddr) > 0 {
		s.logger.Warn("api_router", zap.String("config.server.HttpPort", appConfig.Server.HttpPort))
		s.httpServer = &http.Server{
			Addr:           appConfig.Server.HttpPort,
			Handler:        routers.NewRouter(s.app, s.ut),
			ReadTimeout:    time.Duration(appConfig.Server.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(appConfig.Server.WriteTimeout) * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
			defer done()
			errChan := make(chan error, 1)
			go func() {
				errChan <- s.httpServer.ListenAndServe()
			}()
			select {
			case err := <-errChan:
				s.logger.Error("api service err", zap.Error(err))
				s.sc.SendCloseSignal(err)
			case <-closeSignal:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				// 停止HTTP服务器
				if err := s.httpServer.Shutdown(ctx); err != nil {
					s.logger.Error("api service shutdown error", zap.Error(err))
				}
			}
		})
	}

	// 注册 App Container 的优雅关闭（排空工作池）
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		<-closeSignal
		if s.app != nil {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
			defer cancel()

			if err := s.app.Shutdown(ctx); err != nil {
				s.logger.Error("failed to shutdown app container", zap.Error(err))
			} else {
				s.logger.Info("App container shutdown gracefully")
			}
		}
	})

	return s, nil
}

func initScheduler(s *Server) {
	// 创建任务管理器
	manager := task.NewManager(s.logger, s.sc)

	// 注册所有任务(业务层控制)
	if err := manager.RegisterTasks(s.app); err != nil {
		s.logger.Error("failed to register tasks", zap.Error(err))
		return
	}

	// 启动任务调度器
	manager.Start()
}

// initLoggerWithConfig initializes logger (using injected config)
// initLoggerWithConfig 初始化日志器（使用注入的配置）
func initLoggerWithConfig(s *Server, cfg *internalApp.AppConfig) error {
	lg, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		Production: cfg.Log.Production,
	})
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	s.logger = lg

	return nil
}

// initValidatorWithLogger initializes validator, returns UniversalTranslator
// initValidatorWithLogger 初始化验证器，返回 UniversalTranslator
func initValidatorWithLogger(lg *zap.Logger) (*ut.UniversalTranslator, error) {
	var uni *ut.UniversalTranslator

	validate := pkgApp.Validator()
	if validate != nil {

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		uni = ut.New(en.New(), en.New(), zh.New())

		zhTran, _ := uni.GetTranslator("zh")
		enTran, _ := uni.GetTranslator("en")

		err := zh_translations.RegisterDefaultTranslations(validate, zhTran)
		if err != nil {
			return nil, err
		}
		err = en_translations.RegisterDefaultTranslations(validate, enTran)
		if err != nil {
			return nil, err
		}
	}

	return uni, nil
}

// storageClientConfig 把配置文件中的存储段转换为客户端配置
func storageClientConfig(cfg *internalApp.AppConfig) client.Config {
	return client.Config{
		Scheme:             cfg.Storage.Scheme,
		InsecureSkipVerify: cfg.Storage.InsecureSkipVerify,
		Timeout:            cfg.GetStorageTimeout(),
	}
}

// computeClientConfig 把配置文件中的计算段转换为客户端配置
func computeClientConfig(cfg *internalApp.AppConfig) client.Config {
	return client.Config{
		Scheme:             cfg.Compute.Scheme,
		Port:               cfg.Compute.Port,
		InsecureSkipVerify: cfg.Compute.InsecureSkipVerify,
		Timeout:            cfg.GetComputeTimeout(),
	}
}

// GetApp 获取 App Container
func (s *Server) GetApp() *internalApp.App {
	return s.app
}
