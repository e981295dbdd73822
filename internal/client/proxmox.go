package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/snapvault/vm-backup-service/internal/domain"
)

// ProxmoxClient 基于 Proxmox VE REST API 的 ComputeClient 实现
// 使用 API Token 认证，主机名即节点名
type ProxmoxClient struct {
	cfg         Config
	http        *http.Client
	credentials CredentialProvider
	tokenRef    string
	logger      *zap.Logger
}

// NewProxmoxClient 创建 ProxmoxClient 实例
func NewProxmoxClient(cfg Config, credentials CredentialProvider, tokenRef string, logger *zap.Logger) *ProxmoxClient {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Port <= 0 {
		cfg.Port = 8006
	}
	return &ProxmoxClient{
		cfg:         cfg,
		http:        newHTTPClient(cfg),
		credentials: credentials,
		tokenRef:    tokenRef,
		logger:      logger,
	}
}

func (c *ProxmoxClient) do(ctx context.Context, host, method, path string, body, out interface{}) error {
	token, err := c.credentials.Resolve(c.tokenRef)
	if err != nil {
		return err
	}
	reader, err := jsonBody(body)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s://%s:%d/api2/json%s", c.cfg.Scheme, host, c.cfg.Port, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "PVEAPIToken="+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return doJSON(c.http, req, out)
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type qemuEntry struct {
	VMID   int    `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// ListVMs 列出节点上磁盘位于指定存储的虚拟机
func (c *ProxmoxClient) ListVMs(ctx context.Context, host, storageName string) ([]domain.VM, error) {
	var list dataEnvelope[[]qemuEntry]
	if err := c.do(ctx, host, http.MethodGet, fmt.Sprintf("/nodes/%s/qemu", url.PathEscape(host)), nil, &list); err != nil {
		return nil, err
	}

	var vms []domain.VM
	for _, entry := range list.Data {
		onStorage, err := c.vmUsesStorage(ctx, host, entry.VMID, storageName)
		if err != nil {
			return nil, errors.Wrapf(err, "vm %d", entry.VMID)
		}
		if !onStorage {
			continue
		}
		vms = append(vms, domain.VM{ID: entry.VMID, Name: entry.Name, Host: host})
	}
	return vms, nil
}

// vmUsesStorage 检查虚拟机配置中是否有位于 storageName 的磁盘
// 磁盘项形如 "storage:vm-100-disk-0,size=32G"
func (c *ProxmoxClient) vmUsesStorage(ctx context.Context, host string, vmID int, storageName string) (bool, error) {
	var cfg dataEnvelope[map[string]interface{}]
	path := fmt.Sprintf("/nodes/%s/qemu/%d/config", url.PathEscape(host), vmID)
	if err := c.do(ctx, host, http.MethodGet, path, nil, &cfg); err != nil {
		return false, err
	}
	prefix := storageName + ":"
	for key, raw := range cfg.Data {
		if !isDiskKey(key) {
			continue
		}
		if value, ok := raw.(string); ok && strings.HasPrefix(value, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// isDiskKey 判断配置键是否为磁盘项（scsi0、virtio1、sata0、ide2 等）
func isDiskKey(key string) bool {
	for _, bus := range []string{"scsi", "virtio", "sata", "ide", "efidisk", "tpmstate"} {
		if strings.HasPrefix(key, bus) {
			return true
		}
	}
	return false
}

// VMExists 检查虚拟机是否仍在节点上
func (c *ProxmoxClient) VMExists(ctx context.Context, host string, vmID int) (bool, error) {
	var status dataEnvelope[qemuEntry]
	path := fmt.Sprintf("/nodes/%s/qemu/%d/status/current", url.PathEscape(host), vmID)
	err := c.do(ctx, host, http.MethodGet, path, nil, &status)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FreezeVM 通过 guest agent 冻结虚拟机文件系统
func (c *ProxmoxClient) FreezeVM(ctx context.Context, host string, vmID int) error {
	path := fmt.Sprintf("/nodes/%s/qemu/%d/agent/fsfreeze-freeze", url.PathEscape(host), vmID)
	return c.do(ctx, host, http.MethodPost, path, map[string]interface{}{}, nil)
}

// ThawVM 解冻虚拟机文件系统
func (c *ProxmoxClient) ThawVM(ctx context.Context, host string, vmID int) error {
	path := fmt.Sprintf("/nodes/%s/qemu/%d/agent/fsfreeze-thaw", url.PathEscape(host), vmID)
	return c.do(ctx, host, http.MethodPost, path, map[string]interface{}{}, nil)
}

// SnapshotVM 打一个虚拟机级快照，withMemory 时包含内存状态
func (c *ProxmoxClient) SnapshotVM(ctx context.Context, host string, vmID int, name string, withMemory bool) error {
	body := map[string]interface{}{"snapname": name}
	if withMemory {
		body["vmstate"] = 1
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%d/snapshot", url.PathEscape(host), vmID)
	return c.do(ctx, host, http.MethodPost, path, body, nil)
}

// MountStorage 在节点上挂载一个 NFS 存储
func (c *ProxmoxClient) MountStorage(ctx context.Context, host, storageName, serverIP, exportPath string) error {
	body := map[string]interface{}{
		"storage": storageName,
		"type":    "nfs",
		"server":  serverIP,
		"export":  exportPath,
		"content": "images",
		"nodes":   host,
	}
	return c.do(ctx, host, http.MethodPost, "/storage", body, nil)
}

// UnmountStorage 从节点上移除一个存储挂载
func (c *ProxmoxClient) UnmountStorage(ctx context.Context, host, storageName string) error {
	return c.do(ctx, host, http.MethodDelete, "/storage/"+url.PathEscape(storageName), nil, nil)
}

// HostOnline 检查节点是否在线可达
// 请求失败按离线处理，不作为错误上抛
func (c *ProxmoxClient) HostOnline(ctx context.Context, host string) (bool, error) {
	var status dataEnvelope[map[string]interface{}]
	path := fmt.Sprintf("/nodes/%s/status", url.PathEscape(host))
	if err := c.do(ctx, host, http.MethodGet, path, nil, &status); err != nil {
		c.logger.Debug("host status probe failed", zap.String("host", host), zap.Error(err))
		return false, nil
	}
	return true, nil
}

var _ domain.ComputeClient = (*ProxmoxClient)(nil)
