package main

import "hrleave/internal/app/server"

func main() {
	server.Run()
}
