package main

import "github.com/hoppxi/glint/internal/cmd"

func main() {
	cmd.Execute()
}
