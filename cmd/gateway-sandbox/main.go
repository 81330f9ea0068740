package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/settlement-service/internal/gateway"
	"github.com/fjod/go_cart/settlement-service/internal/gateway/sandbox"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	v := viper.New()
	v.SetDefault("SANDBOX_PORT", "50054")
	v.SetDefault("GATEWAY_MERCHANT_ID", "sandbox-merchant")
	v.SetDefault("GATEWAY_PUBLIC_KEY", "sandbox-public")
	v.SetDefault("GATEWAY_PRIVATE_KEY", "sandbox-private")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	zl, err := logger.New(logger.Options{Service: "gateway-sandbox", Env: "dev", Level: v.GetString("LOG_LEVEL")})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	creds := gateway.Credentials{
		MerchantID: v.GetString("GATEWAY_MERCHANT_ID"),
		PublicKey:  v.GetString("GATEWAY_PUBLIC_KEY"),
		PrivateKey: v.GetString("GATEWAY_PRIVATE_KEY"),
	}
	server := sandbox.NewServer(sandbox.RandomDecisions{}, creds, zl)

	port := v.GetString("SANDBOX_PORT")
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("gateway sandbox listening", zap.String("port", port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down gateway sandbox")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zl.Error("shutdown failed", zap.Error(err))
	}
	zl.Info("gateway sandbox stopped")
}
