package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var RabbitMQConn *amqp.Connection
var RabbitMQChannel *amqp.Channel

const (
	notifyExchange   = "petro_trade_exchange"
	notifyQueue      = "petro_notify_queue"
	notifyRoutingKey = "lifecycle.event"

	publishMaxRetries = 3
)

// LifecycleMsg 生命周期事件消息（交易/订单状态变更通知）
type LifecycleMsg struct {
	Event   string   `json:"event"`    // 如 trade.accepted / escrow.released / order.created
	RefID   string   `json:"ref_id"`   // 关联交易或订单ID
	UserIDs []string `json:"user_ids"` // 需要通知的用户
	Actor   string   `json:"actor"`    // 触发者（仲裁时为arbitrator）
	Detail  string   `json:"detail"`
	Ts      int64    `json:"ts"`
}

// InitRabbitMQ 初始化RabbitMQ
func InitRabbitMQ(url string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	RabbitMQConn = conn

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	RabbitMQChannel = ch

	return declareExchangeAndQueue()
}

// 声明交换机和队列（通知队列）
func declareExchangeAndQueue() error {
	err := RabbitMQChannel.ExchangeDeclare(
		notifyExchange, // 交换机名
		"direct",       // 类型
		true,           // 持久化
		false,          // 自动删除
		false,          // 内部
		false,          // 等待
		nil,            // 参数
	)
	if err != nil {
		return err
	}

	_, err = RabbitMQChannel.QueueDeclare(
		notifyQueue, // 队列名
		true,        // 持久化
		false,       // 自动删除
		false,       // 排他
		false,       // 等待
		nil,         // 参数
	)
	if err != nil {
		return err
	}

	return RabbitMQChannel.QueueBind(
		notifyQueue,
		notifyRoutingKey,
		notifyExchange,
		false,
		nil,
	)
}

// PublishLifecycleMsg 发布生命周期事件（fire-and-forget，失败只记日志不影响业务事务）。
// 立即返回：重试退避在后台goroutine里进行，不挂在请求路径上，
// 也不随请求ctx取消而中断
func PublishLifecycleMsg(ctx context.Context, msg *LifecycleMsg) {
	if RabbitMQChannel == nil {
		return
	}
	msg.Ts = time.Now().Unix()

	body, err := json.Marshal(msg)
	if err != nil {
		Logger.Error("序列化通知消息失败", zap.String("event", msg.Event), zap.Error(err))
		return
	}

	go publishWithRetry(msg.Event, msg.RefID, body)
}

// publishFn 单次投递，测试中可替换
var publishFn = func(body []byte) error {
	return RabbitMQChannel.Publish(
		notifyExchange,
		notifyRoutingKey,
		false, // 强制
		false, // 立即
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// 瞬时故障按指数退避重试，重试耗尽只记日志
func publishWithRetry(event, refID string, body []byte) {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 100 * time.Millisecond
	backoffCfg.MaxInterval = 2 * time.Second

	var err error
	for attempt := 0; attempt < publishMaxRetries; attempt++ {
		err = publishFn(body)
		if err == nil {
			return
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		time.Sleep(sleep)
	}

	Logger.Error("发布通知消息失败", zap.String("event", event), zap.String("ref_id", refID), zap.Error(err))
}

// ConsumeLifecycleMsg 消费生命周期事件消息
func ConsumeLifecycleMsg(handler func(msg *LifecycleMsg) error) error {
	msgs, err := RabbitMQChannel.Consume(
		notifyQueue, // 队列名
		"",          // 消费者标签
		false,       // 自动确认
		false,       // 排他
		false,       // 不本地
		false,       // 等待
		nil,         // 参数
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			var msg LifecycleMsg
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				Logger.Error("通知消息反序列化失败", zap.Error(err))
				d.Nack(false, false) // 拒绝消息，不重新入队
				continue
			}

			if err := handler(&msg); err != nil {
				Logger.Error("处理通知消息失败", zap.String("event", msg.Event), zap.Error(err))
				d.Nack(false, true) // 拒绝消息，重新入队
			} else {
				d.Ack(false)
			}
		}
	}()

	return nil
}

// CloseRabbitMQ 关闭RabbitMQ连接
func CloseRabbitMQ() {
	if RabbitMQChannel != nil {
		RabbitMQChannel.Close()
	}
	if RabbitMQConn != nil {
		RabbitMQConn.Close()
	}
}
