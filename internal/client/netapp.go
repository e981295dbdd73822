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

// NetAppClient 基于 ONTAP 风格 REST API 的 StorageClient 实现
// 控制器地址与凭证引用来自集群仓储，按 controllerID 逐请求解析
type NetAppClient struct {
	cfg         Config
	http        *http.Client
	controllers domain.ClusterRepository
	credentials CredentialProvider
	logger      *zap.Logger
}

// NewNetAppClient 创建 NetAppClient 实例
func NewNetAppClient(cfg Config, controllers domain.ClusterRepository, credentials CredentialProvider, logger *zap.Logger) *NetAppClient {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	return &NetAppClient{
		cfg:         cfg,
		http:        newHTTPClient(cfg),
		controllers: controllers,
		credentials: credentials,
		logger:      logger,
	}
}

func (c *NetAppClient) request(ctx context.Context, controllerID int64, method, path string, body interface{}) (*http.Request, error) {
	controller, err := c.controllers.GetController(ctx, controllerID)
	if err != nil {
		return nil, err
	}
	if controller == nil {
		return nil, fmt.Errorf("controller %d not found", controllerID)
	}

	cred, err := c.credentials.Resolve(controller.CredentialRef)
	if err != nil {
		return nil, errors.Wrapf(err, "controller %d", controllerID)
	}

	reader, err := jsonBody(body)
	if err != nil {
		return nil, err
	}
	host := controller.Host
	if c.cfg.Port > 0 {
		host = fmt.Sprintf("%s:%d", host, c.cfg.Port)
	}
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s://%s%s", c.cfg.Scheme, host, path), reader)
	if err != nil {
		return nil, err
	}
	if user, pass, ok := strings.Cut(cred, ":"); ok {
		req.SetBasicAuth(user, pass)
	} else {
		req.Header.Set("Authorization", "Bearer "+cred)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *NetAppClient) do(ctx context.Context, controllerID int64, method, path string, body, out interface{}) error {
	req, err := c.request(ctx, controllerID, method, path, body)
	if err != nil {
		return err
	}
	return doJSON(c.http, req, out)
}

type recordList[T any] struct {
	Records []T `json:"records"`
}

type namedRecord struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// lookupVolume 按名称取卷 uuid
func (c *NetAppClient) lookupVolume(ctx context.Context, controllerID int64, volume string) (string, error) {
	var list recordList[namedRecord]
	path := "/api/storage/volumes?name=" + url.QueryEscape(volume)
	if err := c.do(ctx, controllerID, http.MethodGet, path, nil, &list); err != nil {
		return "", err
	}
	if len(list.Records) == 0 {
		return "", fmt.Errorf("volume %s not found on controller %d", volume, controllerID)
	}
	return list.Records[0].UUID, nil
}

// ListSnapshots 列出卷上的全部快照名
func (c *NetAppClient) ListSnapshots(ctx context.Context, controllerID int64, volume string) ([]string, error) {
	volUUID, err := c.lookupVolume(ctx, controllerID, volume)
	if err != nil {
		return nil, err
	}
	var list recordList[namedRecord]
	path := fmt.Sprintf("/api/storage/volumes/%s/snapshots", volUUID)
	if err := c.do(ctx, controllerID, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Records))
	for _, rec := range list.Records {
		names = append(names, rec.Name)
	}
	return names, nil
}

// CreateSnapshot 创建卷快照，可附带 SnapLock 保护期与复制标签
func (c *NetAppClient) CreateSnapshot(ctx context.Context, controllerID int64, volume, name string, opts domain.SnapshotOptions) error {
	volUUID, err := c.lookupVolume(ctx, controllerID, volume)
	if err != nil {
		return err
	}
	body := map[string]interface{}{"name": name}
	if opts.Label != "" {
		body["snapmirror_label"] = opts.Label
	}
	if opts.LockHours > 0 {
		body["snaplock_expiry_time"] = fmt.Sprintf("PT%dH", opts.LockHours)
	}
	path := fmt.Sprintf("/api/storage/volumes/%s/snapshots", volUUID)
	return c.do(ctx, controllerID, http.MethodPost, path, body, nil)
}

// DeleteSnapshot 删除卷快照，快照不存在时返回 domain.ErrSnapshotNotFound
func (c *NetAppClient) DeleteSnapshot(ctx context.Context, controllerID int64, volume, name string) error {
	volUUID, err := c.lookupVolume(ctx, controllerID, volume)
	if err != nil {
		return err
	}

	var list recordList[namedRecord]
	path := fmt.Sprintf("/api/storage/volumes/%s/snapshots?name=%s", volUUID, url.QueryEscape(name))
	if err := c.do(ctx, controllerID, http.MethodGet, path, nil, &list); err != nil {
		return err
	}
	if len(list.Records) == 0 {
		return domain.ErrSnapshotNotFound
	}

	path = fmt.Sprintf("/api/storage/volumes/%s/snapshots/%s", volUUID, list.Records[0].UUID)
	err = c.do(ctx, controllerID, http.MethodDelete, path, nil, nil)
	if IsNotFound(err) {
		return domain.ErrSnapshotNotFound
	}
	return err
}

// CloneVolumeFromSnapshot 从快照克隆出新卷，返回克隆卷名
func (c *NetAppClient) CloneVolumeFromSnapshot(ctx context.Context, controllerID int64, volume, snapshot, cloneName string) (string, error) {
	body := map[string]interface{}{
		"name": cloneName,
		"clone": map[string]interface{}{
			"is_flexclone":    true,
			"parent_volume":   map[string]string{"name": volume},
			"parent_snapshot": map[string]string{"name": snapshot},
		},
	}
	if err := c.do(ctx, controllerID, http.MethodPost, "/api/storage/volumes", body, nil); err != nil {
		return "", err
	}
	return cloneName, nil
}

// ListFlexClones 列出控制器上的全部克隆卷
func (c *NetAppClient) ListFlexClones(ctx context.Context, controllerID int64) ([]string, error) {
	var list recordList[namedRecord]
	path := "/api/storage/volumes?clone.is_flexclone=true"
	if err := c.do(ctx, controllerID, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Records))
	for _, rec := range list.Records {
		names = append(names, rec.Name)
	}
	return names, nil
}

// DeleteVolume 按名称删除卷
func (c *NetAppClient) DeleteVolume(ctx context.Context, controllerID int64, volume string) error {
	volUUID, err := c.lookupVolume(ctx, controllerID, volume)
	if err != nil {
		return err
	}
	return c.do(ctx, controllerID, http.MethodDelete, "/api/storage/volumes/"+volUUID, nil, nil)
}

// GetVolumeMounts 列出卷的 NFS 挂载地址
func (c *NetAppClient) GetVolumeMounts(ctx context.Context, controllerID int64) ([]domain.VolumeMount, error) {
	type mountRecord struct {
		Name        string `json:"name"`
		IPInterface struct {
			IP struct {
				Address string `json:"address"`
			} `json:"ip"`
		} `json:"ip_interface"`
	}
	var list recordList[mountRecord]
	path := "/api/storage/volumes?fields=ip_interface"
	if err := c.do(ctx, controllerID, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	mounts := make([]domain.VolumeMount, 0, len(list.Records))
	for _, rec := range list.Records {
		mounts = append(mounts, domain.VolumeMount{
			Volume:  rec.Name,
			MountIP: rec.IPInterface.IP.Address,
		})
	}
	return mounts, nil
}

// LookupVolumeUUID 按名称取卷 uuid
func (c *NetAppClient) LookupVolumeUUID(ctx context.Context, controllerID int64, volume string) (string, error) {
	return c.lookupVolume(ctx, controllerID, volume)
}

// SetExportPath 设置卷的 NFS 导出路径
func (c *NetAppClient) SetExportPath(ctx context.Context, controllerID int64, volumeUUID, path string) error {
	body := map[string]interface{}{
		"nas": map[string]string{"path": path},
	}
	return c.do(ctx, controllerID, http.MethodPatch, "/api/storage/volumes/"+volumeUUID, body, nil)
}

// EnsureExportPolicy 把源控制器上卷的导出策略复制到目标控制器（已存在则跳过）
func (c *NetAppClient) EnsureExportPolicy(ctx context.Context, srcControllerID, dstControllerID int64, volume string) error {
	type exportPolicy struct {
		Name  string                   `json:"name"`
		Rules []map[string]interface{} `json:"rules,omitempty"`
	}

	var src recordList[exportPolicy]
	path := "/api/protocols/nfs/export-policies?name=" + url.QueryEscape(volume)
	if err := c.do(ctx, srcControllerID, http.MethodGet, path, nil, &src); err != nil {
		return err
	}
	if len(src.Records) == 0 {
		return fmt.Errorf("export policy %s not found on controller %d", volume, srcControllerID)
	}

	var dst recordList[exportPolicy]
	if err := c.do(ctx, dstControllerID, http.MethodGet, path, nil, &dst); err != nil {
		return err
	}
	if len(dst.Records) > 0 {
		return nil
	}
	return c.do(ctx, dstControllerID, http.MethodPost, "/api/protocols/nfs/export-policies", src.Records[0], nil)
}

// ListSnapMirrorRelations 列出以该控制器为源端的复制关系
func (c *NetAppClient) ListSnapMirrorRelations(ctx context.Context, controllerID int64) ([]domain.SnapMirrorRelation, error) {
	type relationRecord struct {
		UUID   string `json:"uuid"`
		Source struct {
			Path string `json:"path"`
		} `json:"source"`
		Destination struct {
			Path string `json:"path"`
		} `json:"destination"`
		Policy struct {
			UUID string `json:"uuid"`
		} `json:"policy"`
	}
	var list recordList[relationRecord]
	path := "/api/snapmirror/relationships?fields=source,destination,policy"
	if err := c.do(ctx, controllerID, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}

	relations := make([]domain.SnapMirrorRelation, 0, len(list.Records))
	for _, rec := range list.Records {
		relation := domain.SnapMirrorRelation{
			RelationUUID:       rec.UUID,
			SourceControllerID: controllerID,
			SourceVolume:       volumeFromPath(rec.Source.Path),
			DestVolume:         volumeFromPath(rec.Destination.Path),
			PolicyUUID:         rec.Policy.UUID,
		}
		destControllerID, err := c.resolveControllerByPath(ctx, rec.Destination.Path)
		if err != nil {
			c.logger.Warn("destination controller not resolved for relation",
				zap.String("relation", rec.UUID),
				zap.String("path", rec.Destination.Path),
				zap.Error(err))
			continue
		}
		relation.DestControllerID = destControllerID
		relations = append(relations, relation)
	}
	return relations, nil
}

// volumeFromPath 从 "svm:volume" 形式的路径取卷名
func volumeFromPath(path string) string {
	if _, volume, ok := strings.Cut(path, ":"); ok {
		return volume
	}
	return path
}

// resolveControllerByPath 按 "svm:volume" 前缀匹配已登记控制器
// 控制器名与 svm 名一致是部署约定
func (c *NetAppClient) resolveControllerByPath(ctx context.Context, path string) (int64, error) {
	svm, _, _ := strings.Cut(path, ":")
	controllers, err := c.controllers.ListControllers(ctx)
	if err != nil {
		return 0, err
	}
	for _, controller := range controllers {
		if controller.Name == svm {
			return controller.ID, nil
		}
	}
	return 0, fmt.Errorf("no controller registered for svm %s", svm)
}

// GetSnapMirrorPolicy 取复制策略与保留规则
func (c *NetAppClient) GetSnapMirrorPolicy(ctx context.Context, controllerID int64, policyUUID string) (*domain.SnapMirrorPolicy, error) {
	type retentionRecord struct {
		Label    string `json:"label"`
		Count    int    `json:"count"`
		Preserve bool   `json:"preserve"`
		Warn     int    `json:"warn"`
		Period   string `json:"period"`
	}
	type policyRecord struct {
		UUID               string            `json:"uuid"`
		Name               string            `json:"name"`
		Scope              string            `json:"scope"`
		Type               string            `json:"type"`
		NetworkCompression bool              `json:"network_compression_enabled"`
		Throttle           int               `json:"throttle"`
		Retention          []retentionRecord `json:"retention"`
	}

	var rec policyRecord
	path := "/api/snapmirror/policies/" + url.PathEscape(policyUUID)
	if err := c.do(ctx, controllerID, http.MethodGet, path, nil, &rec); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	policy := &domain.SnapMirrorPolicy{
		ControllerID:       controllerID,
		UUID:               rec.UUID,
		Name:               rec.Name,
		Scope:              rec.Scope,
		Type:               rec.Type,
		NetworkCompression: rec.NetworkCompression,
		Throttle:           rec.Throttle,
	}
	for i, ret := range rec.Retention {
		policy.Retentions = append(policy.Retentions, domain.SnapMirrorRetention{
			Label:    ret.Label,
			Count:    ret.Count,
			Preserve: ret.Preserve,
			Warn:     ret.Warn > 0,
			Period:   ret.Period,
			Position: i,
		})
	}
	return policy, nil
}

// TriggerSnapMirrorUpdate 触发一次复制传输
func (c *NetAppClient) TriggerSnapMirrorUpdate(ctx context.Context, controllerID int64, relationUUID string) error {
	path := fmt.Sprintf("/api/snapmirror/relationships/%s/transfers", url.PathEscape(relationUUID))
	return c.do(ctx, controllerID, http.MethodPost, path, map[string]interface{}{}, nil)
}

// VolumeSupportsLocking 查询卷是否启用 SnapLock
func (c *NetAppClient) VolumeSupportsLocking(ctx context.Context, controllerID int64, volume string) (bool, error) {
	type volumeRecord struct {
		SnapLock struct {
			Type string `json:"type"`
		} `json:"snaplock"`
	}
	var list recordList[volumeRecord]
	path := "/api/storage/volumes?fields=snaplock&name=" + url.QueryEscape(volume)
	if err := c.do(ctx, controllerID, http.MethodGet, path, nil, &list); err != nil {
		return false, err
	}
	if len(list.Records) == 0 {
		return false, fmt.Errorf("volume %s not found on controller %d", volume, controllerID)
	}
	lockType := list.Records[0].SnapLock.Type
	return lockType != "" && lockType != "non_snaplock", nil
}

var _ domain.StorageClient = (*NetAppClient)(nil)
