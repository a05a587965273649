package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newApp(newClient, os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
