package dao

import (
	"errors"

	"petro_trade/errs"
	"petro_trade/model"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitMySQL 初始化MySQL连接并迁移表结构（开发环境）
func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&model.TradeListing{},
		&model.Trade{},
		&model.Checklist{},
		&model.EscrowEntry{},
		&model.EscrowEvent{},
		&model.Product{},
		&model.Order{},
		&model.Investment{},
		&model.InvestmentApplication{},
		&model.Profile{},
		&model.Notification{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// wrapNotFound gorm记录不存在映射为not_found，其余归为internal
func wrapNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.New(errs.CodeNotFound, msg)
	}
	return errs.Wrap(errs.CodeInternal, msg, err)
}

// nextEscrowSeq 事务内取托管流水下一个序号（按trade_id单调递增）
func nextEscrowSeq(tx *gorm.DB, tradeID string) (int64, error) {
	var max int64
	err := tx.Model(&model.EscrowEvent{}).
		Where("trade_id = ?", tradeID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
