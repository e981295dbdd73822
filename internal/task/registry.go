package task

import (
	"sync"

	"github.com/snapvault/vm-backup-service/internal/app"
)

// AppTaskFactory 任务工厂函数类型，接收应用容器并创建任务实例
// 返回 (nil, nil) 表示该任务在当前配置下被禁用
type AppTaskFactory func(appContainer *app.App) (Task, error)

// taskRegistry 全局任务注册表
var (
	taskRegistry  []AppTaskFactory
	registryMutex sync.RWMutex
)

// RegisterWithApp 注册任务工厂函数
// 通常在各个任务文件的 init() 函数中调用
func RegisterWithApp(factory AppTaskFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	taskRegistry = append(taskRegistry, factory)
}

// GetAppFactories 获取所有已注册的任务工厂
func GetAppFactories() []AppTaskFactory {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	// 返回副本，避免外部修改
	factories := make([]AppTaskFactory, len(taskRegistry))
	copy(factories, taskRegistry)
	return factories
}
