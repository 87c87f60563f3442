package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth"
	"github.com/wichananm65/secondhand-market/internal/cart"
	"github.com/wichananm65/secondhand-market/internal/category"
	"github.com/wichananm65/secondhand-market/internal/config"
	"github.com/wichananm65/secondhand-market/internal/payment"
	"github.com/wichananm65/secondhand-market/internal/product"
	"github.com/wichananm65/secondhand-market/internal/review"
	"github.com/wichananm65/secondhand-market/internal/router"
	"github.com/wichananm65/secondhand-market/internal/user"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		if cfg.Production() {
			log.Fatalf("invalid configuration: %v", err)
		}
		log.Warnf("configuration: %v", err)
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "dev-secret"
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("open stores: %v", err)
	}
	defer st.Close()

	app := newApp(cfg, st)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	log.Infof("starting server on %s (%s)", cfg.Addr, cfg.AppEnv)
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func newApp(cfg config.Config, st *stores) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: apperror.Handler,
		Immutable:    true,
		BodyLimit:    12 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry)

	products := product.NewService(st.products).WithSuggestLimit(cfg.SuggestLimit)
	if cfg.CloudinaryURL != "" {
		uploader, err := product.NewCloudinaryUploader(cfg.CloudinaryURL)
		if err != nil {
			log.Warnf("image uploads disabled: %v", err)
		} else {
			products = products.WithUploader(uploader)
		}
	}

	payments := payment.NewService(st.payments, newProcessor(cfg), paymentOptions(cfg)...)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok", "env": cfg.AppEnv})
	})
	app.Static("/images", "./public/images")

	router.Mount(app, issuer, category.NewHandler(category.NewService(st.categories, products)).Routes()...)
	router.Mount(app, issuer, review.NewHandler(review.NewService(st.reviews, products)).Routes()...)
	router.Mount(app, issuer, product.NewHandler(products).Routes()...)
	router.Mount(app, issuer, user.NewHandler(user.NewService(st.users), issuer).Routes()...)
	router.Mount(app, issuer, cart.NewHandler(cart.NewService(st.carts, products)).Routes()...)
	router.Mount(app, issuer, payment.NewHandler(payments).Routes()...)
	return app
}

func newProcessor(cfg config.Config) payment.Processor {
	if cfg.StripeSecretKey != "" {
		return payment.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
	}
	log.Warn("STRIPE_SECRET_KEY not set, payments are settled by the in-process fake processor")
	return payment.NewFakeProcessor(cfg.StripeWebhookSecret)
}

func paymentOptions(cfg config.Config) []payment.Option {
	opts := []payment.Option{payment.WithCurrency(cfg.DefaultCurrency)}
	if cfg.SMTP.Enabled() {
		opts = append(opts, payment.WithMailer(payment.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)))
	}
	return opts
}
