// Package router wires handlers, middleware and routes together.
package router

import (
	"context"
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/davidromero/mercadillo/internal/config"
	"github.com/davidromero/mercadillo/internal/handler"
	"github.com/davidromero/mercadillo/internal/middleware"
	"github.com/davidromero/mercadillo/internal/queue"
	"github.com/davidromero/mercadillo/internal/repository"
	publisher "github.com/davidromero/mercadillo/internal/service"
)

// Register builds every repository and handler on top of the shared
// connection pool and registers all routes.
//
// Route layout:
//   - /healthz and /metrics are unauthenticated operational endpoints;
//   - public catalog reads live under /api with the response cache;
//   - everything else under /api sits behind the identity gate, so each
//     call re-resolves the account and rotates the bearer token.
//
// rdb may be nil: the cache and rate-limit middleware are skipped and the
// API serves every request straight from the database.
func Register(e *echo.Echo, db *sql.DB, rdb *redis.Client, cfg config.Config) {
	users := repository.NewUserRepo(db)
	products := repository.NewProductRepo(db)
	categories := repository.NewCategoryRepo(db)
	tags := repository.NewTagRepo(db)
	purchases := repository.NewPurchaseRepo(db)
	ratings := repository.NewRatingRepo(db)
	comments := repository.NewCommentRepo(db)
	conversations := repository.NewConversationRepo(db)
	reports := repository.NewReportRepo(db)

	var publish func(ctx context.Context, ev queue.PurchaseConfirmedEvent) error
	if cfg.AMQPURL != "" {
		amqpURL := cfg.AMQPURL
		publish = func(ctx context.Context, ev queue.PurchaseConfirmedEvent) error {
			return publisher.PublishPurchaseConfirmed(ctx, amqpURL, ev)
		}
	}

	authH := handler.NewAuthHandler(users, cfg)
	userH := handler.NewUserHandler(users, ratings)
	productH := handler.NewProductHandler(products, categories, tags)
	categoryH := handler.NewCategoryHandler(categories)
	tagH := handler.NewTagHandler(tags)
	purchaseH := handler.NewPurchaseHandler(purchases, products, publish)
	ratingH := handler.NewRatingHandler(ratings, purchases, users)
	commentH := handler.NewCommentHandler(comments, products)
	conversationH := handler.NewConversationHandler(conversations, products)
	reportH := handler.NewReportHandler(reports, products, users, comments)

	e.Use(middleware.Metrics())

	var rateLimit echo.MiddlewareFunc
	if rdb != nil {
		rateLimit = middleware.RateLimit(config.LoadRateLimitConfig(), rdb)
	}

	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", middleware.MetricsHandler())

	// Public surface: registration, login and catalog reads. Unauthenticated
	// callers are rate-limited by IP alone.
	pub := e.Group("/api")
	if rateLimit != nil {
		pub.Use(rateLimit)
	}
	if rdb != nil {
		pub.Use(middleware.ResponseCache(config.LoadCacheConfig(), rdb))
	}
	pub.POST("/auth/register", authH.Register)
	pub.POST("/auth/login", authH.Login)
	pub.GET("/products", productH.List)
	pub.GET("/products/:id", productH.Get)
	pub.GET("/products/:id/comments", commentH.ListByProduct)
	pub.GET("/categories", categoryH.List)
	pub.GET("/tags", tagH.List)
	pub.GET("/users/:id", userH.PublicProfile)
	pub.GET("/users/:id/ratings", userH.RatingsReceived)

	// Protected surface behind the identity gate. The limiter runs after
	// the gate so its bucket key carries the resolved account id.
	auth := e.Group("/api")
	auth.Use(middleware.Authenticate(cfg, users))
	if rateLimit != nil {
		auth.Use(rateLimit)
	}

	auth.POST("/auth/refresh", authH.Refresh)
	auth.GET("/profile", userH.Profile)
	auth.PUT("/profile", userH.UpdateProfile)

	auth.POST("/products", productH.Create)
	auth.PUT("/products/:id", productH.Update)
	auth.DELETE("/products/:id", productH.Delete)
	auth.POST("/products/:id/comments", commentH.Create)
	auth.PUT("/comments/:id", commentH.Update)
	auth.DELETE("/comments/:id", commentH.Delete)

	auth.POST("/categories", categoryH.Create)
	auth.POST("/tags", tagH.Create)

	auth.POST("/purchases", purchaseH.Create)
	auth.GET("/purchases", purchaseH.List)
	auth.GET("/purchases/:id", purchaseH.Get)
	auth.POST("/purchases/:id/process", purchaseH.Process)
	auth.POST("/purchases/:id/confirm", purchaseH.Confirm)
	auth.POST("/purchases/:id/cancel", purchaseH.Cancel)

	auth.POST("/ratings", ratingH.Create)

	auth.POST("/conversations", conversationH.Start)
	auth.GET("/conversations", conversationH.ListMine)
	auth.POST("/conversations/:id/messages", conversationH.PostMessage)
	auth.GET("/conversations/:id/messages", conversationH.ListMessages)

	auth.POST("/reports", reportH.Create)
	auth.GET("/reports", reportH.ListMine)
}
