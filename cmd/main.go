package main

import (
	"os"

	"github.com/adanyl0v/go-planner/internal/app"
)

func main() {
	a := app.New()
	a.InitDefaultLogger()
	a.MustReadEnv()
	a.MustInitApplicationLogger(os.Stdout)

	a.MustConnectPostgres()
	defer a.DisconnectPostgres()

	a.MustListenAndServeHTTP(a.MustBuildServices())
}
