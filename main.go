package main

import "github.com/chukul/s3mirror/cmd"

func main() {
	cmd.Execute()
}
