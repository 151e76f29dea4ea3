// Command elnreport serves the ELN XML to PDF conversion API and bundles
// the offline tools around it.
//
// @title ELN Report API
// @version 1.0
// @BasePath /
package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"elnreport/cmd/elnreport/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
