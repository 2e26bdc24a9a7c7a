package main

import (
	"os"
	"os/signal"
	"syscall"

	"petro_trade/config"
	"petro_trade/dao"
	"petro_trade/handler"
	"petro_trade/service"
	"petro_trade/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 初始化配置
	if err := config.InitConfig(); err != nil {
		zap.L().Fatal("初始化配置失败", zap.Error(err))
	}

	// 2. 初始化日志
	if err := utils.InitLogger(); err != nil {
		zap.L().Fatal("初始化日志失败", zap.Error(err))
	}

	// 3. 初始化MySQL（含表结构迁移）
	db, err := dao.InitMySQL(config.GlobalConfig.MySQLDSN)
	if err != nil {
		utils.Logger.Fatal("连接MySQL失败", zap.Error(err))
	}

	// 4. 初始化Redis
	if err := utils.InitRedis(config.GlobalConfig.RedisAddr, config.GlobalConfig.RedisPassword, config.GlobalConfig.RedisDB); err != nil {
		utils.Logger.Fatal("初始化Redis失败", zap.Error(err))
	}

	// 5. 初始化RabbitMQ
	if err := utils.InitRabbitMQ(config.GlobalConfig.RabbitMQURL); err != nil {
		utils.Logger.Fatal("初始化RabbitMQ失败", zap.Error(err))
	}
	defer utils.CloseRabbitMQ()

	// 6. 初始化存储、服务与处理器
	tradeStore := dao.NewGormTradeStore(db)
	shopStore := dao.NewGormShopStore(db)
	investStore := dao.NewGormInvestStore(db)
	notifyStore := dao.NewGormNotificationStore(db)

	tradeService := service.NewTradeService(tradeStore, config.GlobalConfig.EscrowFeeRate)
	orderService := service.NewOrderService(shopStore)
	investService := service.NewInvestService(investStore)
	notifyService := service.NewNotifyService(notifyStore)

	tradeHandler := handler.NewTradeHandler(tradeService)
	orderHandler := handler.NewOrderHandler(orderService)
	investHandler := handler.NewInvestHandler(investService, notifyService)

	// 7. 启动RabbitMQ消费者（生命周期事件落库为通知）
	if err := utils.ConsumeLifecycleMsg(notifyService.HandleLifecycleMsg); err != nil {
		utils.Logger.Fatal("启动消费者失败", zap.Error(err))
	}

	// 8. 初始化Gin引擎与路由
	r := gin.Default()

	v1 := r.Group("/api/v1")

	// 公开报盘与商品浏览无需登录
	v1.GET("/listings", tradeHandler.ListListings)
	v1.GET("/listings/:id", tradeHandler.GetListing)
	v1.GET("/products", orderHandler.ListProducts)
	v1.GET("/products/:id", orderHandler.GetProduct)
	v1.GET("/investments", investHandler.ListInvestments)

	auth := v1.Group("", handler.AuthRequired())
	{
		// 挂单
		auth.POST("/listings", tradeHandler.CreateListing)
		auth.DELETE("/listings/:id", tradeHandler.WithdrawListing)
		auth.GET("/listings/mine", tradeHandler.MyListings)

		// 交易生命周期
		auth.POST("/trades/accept", tradeHandler.AcceptTrade)
		auth.GET("/trades", tradeHandler.MyTrades)
		auth.GET("/trades/:id", tradeHandler.GetTrade)
		auth.GET("/trades/:id/escrow", tradeHandler.EscrowLedger)
		auth.POST("/trades/:id/checklist", tradeHandler.ToggleChecklist)
		auth.POST("/trades/:id/dispute", tradeHandler.RaiseDispute)
		auth.POST("/trades/:id/resolve", handler.RoleRequired(handler.RoleArbitrator), tradeHandler.ResolveDispute)

		// 商城订单
		auth.POST("/products", handler.RoleRequired(handler.RoleAdmin), orderHandler.CreateProduct)
		auth.POST("/orders", orderHandler.PlaceOrder)
		auth.POST("/orders/:id/cancel", orderHandler.CancelOrder)
		auth.GET("/orders/:id", orderHandler.GetOrder)
		auth.GET("/orders", orderHandler.MyOrders)

		// 投资与资料
		auth.POST("/investments", handler.RoleRequired(handler.RoleAdmin), investHandler.CreateInvestment)
		auth.POST("/investments/apply", investHandler.Apply)
		auth.GET("/investments/applications", investHandler.MyApplications)
		auth.GET("/profile", investHandler.GetProfile)
		auth.PUT("/profile", investHandler.SaveProfile)
		auth.GET("/notifications", investHandler.MyNotifications)
	}

	// 9. 启动服务（优雅关闭）
	go func() {
		if err := r.Run(config.GlobalConfig.ServerPort); err != nil {
			utils.Logger.Fatal("启动服务失败", zap.Error(err))
		}
	}()

	// 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info("服务正在关闭...")
}
