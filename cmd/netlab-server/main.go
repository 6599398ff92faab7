package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/grimm00/networking-learning-sub003"
	"github.com/grimm00/networking-learning-sub003/server"
	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

func main() {
	// Setup logging.
	netlabutil.SetupLogging()
	log.Printf("Starting Netlab Server, version %s, build date %s", netlab.Version, netlab.BuildDate)

	// Initialize global state of the server.
	netlabServer, err := server.NewNetlabServer()
	if err != nil {
		log.Fatalf("Unexpected error: %+v", err)
	}
	if netlabServer == nil {
		// Version or help was printed.
		return
	}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		<-c
		netlabServer.Shutdown()
		os.Exit(0)
	}()

	if err := netlabServer.Serve(); err != nil {
		log.Fatalf("Unexpected error: %+v", err)
	}
}
