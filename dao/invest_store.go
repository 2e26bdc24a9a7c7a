package dao

import (
	"context"

	"petro_trade/errs"
	"petro_trade/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormInvestStore InvestStore的MySQL实现
type gormInvestStore struct {
	db *gorm.DB
}

// NewGormInvestStore 创建投资存储
func NewGormInvestStore(db *gorm.DB) InvestStore {
	return &gormInvestStore{db: db}
}

// CreateInvestment 创建投资标的
func (s *gormInvestStore) CreateInvestment(ctx context.Context, inv *model.Investment) error {
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "create investment failed", err)
	}
	return nil
}

// ListOpenInvestments 查询开放申购的标的
func (s *gormInvestStore) ListOpenInvestments(ctx context.Context) ([]model.Investment, error) {
	var invs []model.Investment
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.InvestmentStatusOpen).
		Order("created_at DESC").Find(&invs).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "list investments failed", err)
	}
	return invs, nil
}

// GetInvestment 查询投资标的
func (s *gormInvestStore) GetInvestment(ctx context.Context, id string) (*model.Investment, error) {
	var inv model.Investment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, wrapNotFound(err, "investment not found")
	}
	return &inv, nil
}

// CreateApplication 创建投资申请
func (s *gormInvestStore) CreateApplication(ctx context.Context, app *model.InvestmentApplication) error {
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "create application failed", err)
	}
	return nil
}

// ListApplicationsByUser 查询用户投资申请
func (s *gormInvestStore) ListApplicationsByUser(ctx context.Context, userID string) ([]model.InvestmentApplication, error) {
	var apps []model.InvestmentApplication
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Find(&apps).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "list applications failed", err)
	}
	return apps, nil
}

// GetProfile 查询用户资料
func (s *gormInvestStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		return nil, wrapNotFound(err, "profile not found")
	}
	return &p, nil
}

// SaveProfile 保存用户资料（按主键upsert）
func (s *gormInvestStore) SaveProfile(ctx context.Context, p *model.Profile) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "company_name", "country", "phone", "updated_at"}),
	}).Create(p).Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "save profile failed", err)
	}
	return nil
}

// gormNotificationStore NotificationStore的MySQL实现
type gormNotificationStore struct {
	db *gorm.DB
}

// NewGormNotificationStore 创建通知存储
func NewGormNotificationStore(db *gorm.DB) NotificationStore {
	return &gormNotificationStore{db: db}
}

// CreateNotification 写入通知记录
func (s *gormNotificationStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return errs.Wrap(errs.CodeInternal, "create notification failed", err)
	}
	return nil
}

// ListNotificationsByUser 查询用户通知历史
func (s *gormNotificationStore) ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	var ns []model.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&ns).Error; err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "list notifications failed", err)
	}
	return ns, nil
}
