package main

import (
	"os"

	"horse.fit/feedsift/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
