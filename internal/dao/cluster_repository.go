package dao

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/snapvault/vm-backup-service/internal/domain"
	"github.com/snapvault/vm-backup-service/internal/model"
)

type clusterRepository struct {
	dao *Dao
}

// NewClusterRepository 创建 ClusterRepository 实例
func NewClusterRepository(dao *Dao) domain.ClusterRepository {
	return &clusterRepository{dao: dao}
}

func clusterToDomain(m *model.Cluster) *domain.Cluster {
	if m == nil {
		return nil
	}
	var hosts []string
	for _, h := range strings.Split(m.Hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &domain.Cluster{
		ID:        m.ID,
		Name:      m.Name,
		Hosts:     hosts,
		CreatedAt: m.CreatedAt,
	}
}

func controllerToDomain(m *model.Controller) *domain.Controller {
	if m == nil {
		return nil
	}
	return &domain.Controller{
		ID:            m.ID,
		Name:          m.Name,
		Host:          m.Host,
		CredentialRef: m.CredentialRef,
		CreatedAt:     m.CreatedAt,
	}
}

func (r *clusterRepository) GetCluster(ctx context.Context, id int64) (*domain.Cluster, error) {
	var m model.Cluster
	if err := r.dao.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return clusterToDomain(&m), nil
}

func (r *clusterRepository) GetController(ctx context.Context, id int64) (*domain.Controller, error) {
	var m model.Controller
	if err := r.dao.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return controllerToDomain(&m), nil
}

func (r *clusterRepository) ListControllers(ctx context.Context) ([]*domain.Controller, error) {
	var rows []*model.Controller
	if err := r.dao.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Controller, 0, len(rows))
	for _, m := range rows {
		out = append(out, controllerToDomain(m))
	}
	return out, nil
}
