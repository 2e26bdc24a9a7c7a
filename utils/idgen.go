package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateOrderNo 生成订单编号：{时间戳毫秒}-{UUID后8位}
func GenerateOrderNo() string {
	ts := time.Now().UnixMilli()
	uuidStr := uuid.New().String()
	shortUUID := uuidStr[len(uuidStr)-8:]
	return fmt.Sprintf("%d-%s", ts, shortUUID)
}
