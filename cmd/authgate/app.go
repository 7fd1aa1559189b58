package main

import (
	"embed"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/activitymap"
	"github.com/goliatone/go-auth-gate/middleware/jwtware"
	"github.com/goliatone/go-router"
)

const apiPrefix = "/api"

//go:embed views
var viewsFS embed.FS

type deps struct {
	cfg    *auth.Config
	secret auth.Secret
	store  auth.CredentialStore
	logger auth.Logger
}

func newApp(d deps) (*fiber.App, error) {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			Views:                 django.NewFileSystem(http.FS(views), ".html"),
			DisableStartupMessage: true,
		})
	})
	app := srv.WrappedRouter()

	tokens := auth.NewTokenService(d.secret, auth.WithTokenLogger(d.logger))
	responder := auth.NewFailureResponder(auth.WithResponderLogger(d.logger))
	guard := auth.NewGuard(responder)
	login := auth.NewLoginHandler(tokens, d.store, responder, d.cfg.Auth,
		auth.WithLoginLogger(d.logger),
		auth.WithLoginActivitySink(activitymap.Sink(d.logger)),
	)

	classifier := auth.RouteClassifierFromConfig(d.cfg)

	// pages are bound here, the API binds through go-router below
	app.Use(jwtware.New(jwtware.Config{
		Filter: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), apiPrefix+"/")
		},
		Decoder:    tokens,
		Classifier: classifier,
		Logger:     d.logger,
	}))

	for _, dir := range []string{"css", "js", "images"} {
		app.Static("/"+dir, filepath.Join(d.cfg.Server.PublicDir, dir))
	}

	loginPath := d.cfg.Auth.LoginPath

	app.Get(loginPath, func(c *fiber.Ctx) error {
		args := c.Request().URI().QueryArgs()
		return c.Render("login", fiber.Map{
			"action": loginPath,
			"error":  args.Has("error"),
			"logout": args.Has("logout"),
		})
	})
	app.Post(loginPath, login.HandleLogin)
	app.Post("/logout", login.HandleLogout)

	app.Get("/", func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFromCtx(c)
		if !ok {
			return c.Redirect(loginPath, fiber.StatusFound)
		}
		return c.Render("index", fiber.Map{"user": principal})
	})

	api := srv.Router().Group(apiPrefix)
	api.Use(jwtware.NewRouter(jwtware.Config{
		Decoder:    tokens,
		Classifier: classifier,
		Logger:     d.logger,
	}))

	api.Get("/me", func(c router.Context) error {
		principal, _ := auth.RouterPrincipal(c)
		return c.JSON(fiber.StatusOK, principal)
	}, guard.Protected())

	api.Get("/admin/status", func(c router.Context) error {
		return c.JSON(fiber.StatusOK, fiber.Map{"status": "ok"})
	}, guard.ProtectedWith(auth.RoleAdmin))

	return app, nil
}
