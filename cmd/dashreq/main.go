package main

import "github.com/stdutil/dashhttp/internal/cmd"

func main() {
	cmd.Execute()
}
