package fixture

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/perlpunk/openqa-review/internal/browser"
	"github.com/perlpunk/openqa-review/internal/cache"
)

const contextKeyRequestID = "_openqa_review_request_id"

// Options 控制回放服务器的依赖注入，便于测试替换存储实现。
type Options struct {
	Logger *logrus.Logger
	Store  cache.Store
}

type fixturePayload struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// NewApp 构建只读的 fixture 回放应用：索引路由把文件名反解为原始 URL，
// raw 路由原样返回正文。
func NewApp(opts Options) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Store == nil {
		return nil, errors.New("fixture store is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	registerRoutes(app, opts)
	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，写入响应头并留在 Locals 里供日志使用。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func registerRoutes(app *fiber.App, opts Options) {
	app.Get("/-/fixtures", func(c fiber.Ctx) error {
		entries, err := opts.Store.List(requestContext(c))
		if err != nil {
			opts.Logger.WithError(err).WithFields(logrus.Fields{
				"action":     "fixture_list",
				"request_id": RequestID(c),
			}).Error("fixture listing failed")
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "fixture_list_failed"})
		}

		payload := make([]fixturePayload, 0, len(entries))
		for _, entry := range entries {
			payload = append(payload, fixturePayload{
				Name:      entry.Name,
				URL:       browser.DecodeFilename(entry.Name),
				SizeBytes: entry.SizeBytes,
				ModTime:   entry.ModTime,
			})
		}
		return c.JSON(fiber.Map{"fixtures": payload})
	})

	// 编码后的文件名包含 '%'，走路径参数会被路由层二次解码，
	// 因此用查询参数传递。
	app.Get("/-/fixtures/raw", func(c fiber.Ctx) error {
		name := c.Query("name")
		if name == "" {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "fixture_name_required"})
		}

		body, err := opts.Store.Get(requestContext(c), name)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).
					JSON(fiber.Map{"error": "fixture_not_found"})
			}
			opts.Logger.WithError(err).WithFields(logrus.Fields{
				"action":     "fixture_read",
				"name":       name,
				"request_id": RequestID(c),
			}).Error("fixture read failed")
			return c.Status(fiber.StatusInternalServerError).
				JSON(fiber.Map{"error": "fixture_read_failed"})
		}

		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Send(body)
	})
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
