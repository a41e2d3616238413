package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"sheettools/internal/config"
	"sheettools/internal/db"
	"sheettools/internal/logging"
	"sheettools/internal/security"
	"sheettools/internal/shopify"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"
)

func main() {
	shop := flag.String("shop", "", "shop domain, e.g. loja.myshopify.com")
	user := flag.String("user", "", "owner id; looked up in SHOP_TO_USER_TABLE when empty")
	callback := flag.String("callback", "", "webhook URL; defaults to $URL"+shopify.WebhookFunctionPath)
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if !shopify.ValidShopDomain(*shop) {
		log.Fatalf("-shop must be a <name>.myshopify.com domain, got %q", *shop)
	}
	callbackURL := *callback
	if callbackURL == "" {
		if cfg.SiteURL == "" {
			log.Fatal("set -callback or URL")
		}
		callbackURL = shopify.WebhookCallbackURL(cfg.SiteURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	ddb := db.NewDynamoClient(awsCfg)

	owner := strings.TrimSpace(*user)
	if owner == "" {
		subs, err := shopify.UsersForShop(ctx, ddb, cfg.ShopToUserTable, *shop)
		if err != nil {
			log.Fatalf("lookup shop owner: %v", err)
		}
		if len(subs) == 0 {
			log.Fatalf("no owner mapped for %s", *shop)
		}
		owner = subs[0]
	}

	tc, err := security.NewTokenCipherFromBase64(cfg.TokenEncKeyB64)
	if err != nil {
		log.Fatalf("token cipher: %v", err)
	}
	token, integ, err := shopify.LoadAccessToken(ctx, ddb, cfg.IntegrationsTable, tc, owner, *shop)
	if err != nil {
		log.Fatalf("load access token: %v", err)
	}

	shopDomain := integ.Shop
	if shopDomain == "" {
		shopDomain = *shop
	}
	client := shopify.NewAdminClient(shopDomain, cfg.ShopifyAPIVersion, token)
	id, err := shopify.RegisterOrderWebhook(ctx, client, callbackURL)
	if err != nil {
		log.Fatalf("register webhook: %v", err)
	}

	logger.Info("orders/create webhook registered",
		zap.String("shop_domain", shopDomain),
		zap.String("user_id", owner),
		zap.String("subscription_id", id),
		zap.String("callback_url", callbackURL))
	fmt.Println(id)
}
