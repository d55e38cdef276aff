package main

import (
	"context"
	"log"

	"keynow/app"
	"keynow/config"
	"keynow/controllers"
	"keynow/routes"
	"keynow/service"
)

func main() {
	config.LoadEnv()

	application := app.MustNew()
	defer application.Close()

	r := application.Router

	// Health
	r.GET("/healthz", func(c *app.Ctx) { c.JSON(200, app.H{"ok": true}) })

	s := controllers.GetSrv(application)
	routes.RegisterRoutes(r, s)

	// Background jobs: overdue notifications and the midnight lease reset.
	scanner := service.NewOverdueScanner(
		s.Repo, application.Line, application.Sheets,
		application.Config.DefaultCutoff, application.Config.ScanInterval,
		log.Default(),
	)
	scanner.Start(context.Background())
	defer scanner.Stop()

	reset := service.NewDailyReset(s.Repo, application.Line, log.Default())
	reset.Start(context.Background())
	defer reset.Stop()

	port := application.Config.Port
	log.Printf("listening on :%s", port)
	_ = r.Run(":" + port)
}
