package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopee_order_v1/internal/model"
)

// ErrInvalidAnnotation 标注字段不合法
var ErrInvalidAnnotation = errors.New("invalid annotation")

const annotationBatchSize = 200

// ==================== 接口定义 ====================

// AnnotationRepository 订单标注仓储接口
type AnnotationRepository interface {
	GetAll(ctx context.Context) ([]model.OrderAnnotation, error)
	GetByOrderSNs(ctx context.Context, orderSNs []string) ([]model.OrderAnnotation, error)
	UpsertOne(ctx context.Context, a *model.OrderAnnotation) error
	UpsertBatch(ctx context.Context, list []model.OrderAnnotation) (int, error)
}

// ==================== 仓储实现 ====================

type annotationRepo struct {
	db *gorm.DB
}

// NewAnnotationRepository 创建订单标注仓储
func NewAnnotationRepository(db *gorm.DB) AnnotationRepository {
	return &annotationRepo{db: db}
}

func (r *annotationRepo) GetAll(ctx context.Context) ([]model.OrderAnnotation, error) {
	var list []model.OrderAnnotation
	err := r.db.WithContext(ctx).
		Order("order_sn ASC, product_name ASC, item_spec ASC").
		Find(&list).Error
	return list, err
}

func (r *annotationRepo) GetByOrderSNs(ctx context.Context, orderSNs []string) ([]model.OrderAnnotation, error) {
	if len(orderSNs) == 0 {
		return nil, nil
	}
	var list []model.OrderAnnotation
	err := r.db.WithContext(ctx).
		Where("order_sn IN ?", orderSNs).
		Find(&list).Error
	return list, err
}

func (r *annotationRepo) UpsertOne(ctx context.Context, a *model.OrderAnnotation) error {
	if err := ValidateAnnotation(a); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(upsertOnKey()).Create(a).Error
}

// UpsertBatch 同一批次内重复的键以最后一条为准；返回去重后实际写入的条数
func (r *annotationRepo) UpsertBatch(ctx context.Context, list []model.OrderAnnotation) (int, error) {
	if len(list) == 0 {
		return 0, nil
	}

	index := make(map[model.AnnotationKey]int, len(list))
	deduped := make([]model.OrderAnnotation, 0, len(list))
	for i := range list {
		if err := ValidateAnnotation(&list[i]); err != nil {
			return 0, fmt.Errorf("item %d: %w", i, err)
		}
		key := list[i].Key()
		if pos, ok := index[key]; ok {
			deduped[pos] = list[i]
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, list[i])
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(upsertOnKey()).CreateInBatches(&deduped, annotationBatchSize).Error
	})
	if err != nil {
		return 0, err
	}
	return len(deduped), nil
}

func upsertOnKey() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "order_sn"}, {Name: "product_name"}, {Name: "item_spec"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"received", "missing_count", "note", "tag", "reference_image_url", "updated_at",
		}),
	}
}

// ValidateAnnotation 校验必填键与数量
func ValidateAnnotation(a *model.OrderAnnotation) error {
	if a.OrderSN == "" {
		return fmt.Errorf("%w: order_sn is required", ErrInvalidAnnotation)
	}
	if a.ProductName == "" {
		return fmt.Errorf("%w: product_name is required", ErrInvalidAnnotation)
	}
	if a.MissingCount < 0 {
		return fmt.Errorf("%w: missing_count must be >= 0", ErrInvalidAnnotation)
	}
	return nil
}
