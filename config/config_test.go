package config

import "testing"

func TestInitConfigDefaults(t *testing.T) {
	if err := InitConfig(); err != nil {
		t.Fatal(err)
	}
	if GlobalConfig.EscrowFeeRate != 0.02 {
		t.Errorf("默认托管费率应为0.02，got %v", GlobalConfig.EscrowFeeRate)
	}
	if GlobalConfig.ServerPort == "" || GlobalConfig.MySQLDSN == "" {
		t.Error("默认配置不应为空")
	}
}

func TestInitConfigOverrides(t *testing.T) {
	t.Setenv("ESCROW_FEE_RATE", "0.05")
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("REDIS_DB", "3")

	if err := InitConfig(); err != nil {
		t.Fatal(err)
	}
	if GlobalConfig.EscrowFeeRate != 0.05 {
		t.Errorf("费率覆盖失败: %v", GlobalConfig.EscrowFeeRate)
	}
	if GlobalConfig.ServerPort != ":9090" {
		t.Errorf("端口覆盖失败: %s", GlobalConfig.ServerPort)
	}
	if GlobalConfig.RedisDB != 3 {
		t.Errorf("RedisDB覆盖失败: %d", GlobalConfig.RedisDB)
	}
}

func TestInitConfigBadFeeRate(t *testing.T) {
	t.Setenv("ESCROW_FEE_RATE", "not-a-number")
	if err := InitConfig(); err == nil {
		t.Fatal("非法费率应报错")
	}
}
