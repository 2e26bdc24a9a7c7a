package service

import (
	"context"

	"petro_trade/dao"
	"petro_trade/errs"
	"petro_trade/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestService 投资服务接口
type InvestService interface {
	CreateInvestment(ctx context.Context, req CreateInvestmentReq) (string, error)
	ListOpenInvestments(ctx context.Context) ([]model.Investment, error)
	Apply(ctx context.Context, req ApplyInvestmentReq) (string, error)
	ListUserApplications(ctx context.Context, userID string) ([]model.InvestmentApplication, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	SaveProfile(ctx context.Context, req SaveProfileReq) error
}

// investService 投资服务实现
type investService struct {
	store dao.InvestStore
}

// NewInvestService 创建投资服务
func NewInvestService(store dao.InvestStore) InvestService {
	return &investService{store: store}
}

// CreateInvestmentReq 创建投资标的请求（管理端）
type CreateInvestmentReq struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	InvestmentType    string `json:"investment_type"`
	MinimumInvestment string `json:"minimum_investment"`
	ExpectedReturn    string `json:"expected_return"`
	Duration          string `json:"duration"`
}

// ApplyInvestmentReq 投资申请请求
type ApplyInvestmentReq struct {
	UserID       string `json:"-"`
	InvestmentID string `json:"investment_id"`
	Amount       string `json:"amount"`
	Notes        string `json:"notes"`
}

// SaveProfileReq 保存资料请求（KYC标记由身份方维护，这里不可写）
type SaveProfileReq struct {
	UserID      string `json:"-"`
	FullName    string `json:"full_name"`
	CompanyName string `json:"company_name"`
	Country     string `json:"country"`
	Phone       string `json:"phone"`
}

// CreateInvestment 创建投资标的
func (s *investService) CreateInvestment(ctx context.Context, req CreateInvestmentReq) (string, error) {
	if req.Title == "" || req.InvestmentType == "" {
		return "", errs.New(errs.CodeValidation, "title and investment type required")
	}
	minimum, err := decimal.NewFromString(req.MinimumInvestment)
	if err != nil || !minimum.IsPositive() {
		return "", errs.New(errs.CodeValidation, "minimum investment must be positive")
	}

	inv := &model.Investment{
		ID:                uuid.NewString(),
		Title:             req.Title,
		Description:       req.Description,
		InvestmentType:    req.InvestmentType,
		MinimumInvestment: minimum,
		ExpectedReturn:    req.ExpectedReturn,
		Duration:          req.Duration,
		Status:            model.InvestmentStatusOpen,
	}
	if err := s.store.CreateInvestment(ctx, inv); err != nil {
		return "", err
	}
	return inv.ID, nil
}

// ListOpenInvestments 查询开放申购的标的
func (s *investService) ListOpenInvestments(ctx context.Context) ([]model.Investment, error) {
	return s.store.ListOpenInvestments(ctx)
}

// Apply 提交投资申请（需通过KYC）
func (s *investService) Apply(ctx context.Context, req ApplyInvestmentReq) (string, error) {
	profile, err := s.store.GetProfile(ctx, req.UserID)
	if err != nil || !profile.KYCVerified {
		return "", errs.New(errs.CodeUnauthorized, "kyc verification required")
	}

	inv, err := s.store.GetInvestment(ctx, req.InvestmentID)
	if err != nil {
		return "", err
	}
	if inv.Status != model.InvestmentStatusOpen {
		return "", errs.New(errs.CodeInvalidState, "investment not open")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return "", errs.New(errs.CodeValidation, "amount must be positive")
	}
	if amount.LessThan(inv.MinimumInvestment) {
		return "", errs.Newf(errs.CodeValidation, "amount below minimum investment %s", inv.MinimumInvestment)
	}

	app := &model.InvestmentApplication{
		ID:           uuid.NewString(),
		InvestmentID: req.InvestmentID,
		UserID:       req.UserID,
		Amount:       amount,
		Notes:        req.Notes,
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return "", err
	}
	return app.ID, nil
}

// ListUserApplications 查询用户投资申请
func (s *investService) ListUserApplications(ctx context.Context, userID string) ([]model.InvestmentApplication, error) {
	return s.store.ListApplicationsByUser(ctx, userID)
}

// GetProfile 查询用户资料
func (s *investService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// SaveProfile 保存用户资料
func (s *investService) SaveProfile(ctx context.Context, req SaveProfileReq) error {
	if req.FullName == "" {
		return errs.New(errs.CodeValidation, "full name required")
	}
	return s.store.SaveProfile(ctx, &model.Profile{
		ID:          req.UserID,
		FullName:    req.FullName,
		CompanyName: req.CompanyName,
		Country:     req.Country,
		Phone:       req.Phone,
	})
}
