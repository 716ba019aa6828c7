package main

import (
	_ "time/tzdata" // meetings are scheduled in America/Chicago

	"github.com/pfrederiksen/chi-landmarks/internal/cli"
)

func main() {
	cli.Execute()
}
