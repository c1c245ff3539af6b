package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/profilehub/internal/buildinfo"
	"github.com/dmitrijs2005/profilehub/internal/server"
	"github.com/dmitrijs2005/profilehub/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
