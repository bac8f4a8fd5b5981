// Package main is the entry point for the LazySoft consultant service.
//
//	@title			LazySoft Consultant API
//	@version		1.0
//	@description	RAG sales consultant: dialogue turns, quote requests, index maintenance and pattern learning.
//
//	@BasePath		/
package main

import (
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/lazysoft/consultant/cmd/consultant/app"
)

func main() {
	// .env 仅用于本地开发，缺失时忽略。
	_ = godotenv.Load()
	app.NewApp().Run()
}
