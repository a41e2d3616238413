package main

import (
	"sheettools/internal/config"
	"sheettools/internal/handlers"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	h := handlers.Health{Service: "sheettools-functions", Config: config.Load()}
	lambda.Start(h.Handle)
}
