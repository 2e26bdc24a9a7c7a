package utils

import (
	"strings"
	"testing"
)

func TestGenerateOrderNo(t *testing.T) {
	no := GenerateOrderNo()
	parts := strings.Split(no, "-")
	if len(parts) != 2 {
		t.Fatalf("订单编号格式应为{毫秒时间戳}-{uuid后8位}: %s", no)
	}
	if len(parts[1]) != 8 {
		t.Errorf("uuid段应为8位: %s", parts[1])
	}

	// 粗查唯一性
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := GenerateOrderNo()
		if seen[n] {
			t.Fatalf("订单编号重复: %s", n)
		}
		seen[n] = true
	}
}
