package service

import (
	"context"

	"petro_trade/dao"
	"petro_trade/model"
	"petro_trade/utils"
)

// NotifyService 通知服务：消费生命周期事件，落库为用户可查的通知历史
type NotifyService interface {
	HandleLifecycleMsg(msg *utils.LifecycleMsg) error
	ListUserNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}

// notifyService 通知服务实现
type notifyService struct {
	store dao.NotificationStore
}

// NewNotifyService 创建通知服务
func NewNotifyService(store dao.NotificationStore) NotifyService {
	return &notifyService{store: store}
}

// HandleLifecycleMsg 处理单条生命周期事件（RabbitMQ消费回调）
func (s *notifyService) HandleLifecycleMsg(msg *utils.LifecycleMsg) error {
	ctx := context.Background()
	for _, userID := range msg.UserIDs {
		n := &model.Notification{
			UserID: userID,
			Event:  msg.Event,
			RefID:  msg.RefID,
			Detail: msg.Detail,
		}
		if err := s.store.CreateNotification(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// ListUserNotifications 查询用户通知历史
func (s *notifyService) ListUserNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListNotificationsByUser(ctx, userID, limit)
}
