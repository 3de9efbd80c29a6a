package main

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-manager-server/pkg/app"
)

func main() {
	if err := app.Run(&tokenManagerApp{}); err != nil {
		logrus.WithError(err).Fatal("error running service")
	}
}
