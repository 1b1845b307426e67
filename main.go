package main

import (
	"github.com/vignesh-goutham/orion/cmd/orion"
)

func main() {
	orion.Execute()
}
