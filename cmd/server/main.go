package main

import (
	"github.com/rolohq/rolo/internal/server"
	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
