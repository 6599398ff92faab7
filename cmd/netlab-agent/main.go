package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/grimm00/networking-learning-sub003"
	"github.com/grimm00/networking-learning-sub003/agent"
	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// Error used to indicate that the agent received a SIGHUP signal.
type sighupError struct{}

// Returns sighupError error text.
func (e *sighupError) Error() string {
	return "received SIGHUP signal"
}

// Error used to indicate that Ctrl-C was pressed to terminate the
// agent.
type ctrlcError struct{}

// Returns ctrlcError error text.
func (e *ctrlcError) Error() string {
	return "received Ctrl-C signal"
}

// Helper function that starts the agent and waits for a terminating
// signal.
func runAgent(settings *cli.Context, reload bool) error {
	if !reload {
		log.Printf("Starting Netlab Agent, version %s, build date %s", netlab.Version, netlab.BuildDate)
	}

	if envFile := settings.String("env-file"); envFile != "" {
		if err := netlabutil.LoadEnvironmentFileToProcess(envFile); err != nil {
			return err
		}
	}

	monitor := agent.NewServiceMonitor()
	netlabAgent := agent.NewNetlabAgent(settings, monitor)

	if err := netlabAgent.Serve(); err != nil {
		return err
	}
	defer netlabAgent.Shutdown()

	// Handle signals.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGHUP)
	sig := <-c
	switch sig {
	case syscall.SIGHUP:
		log.Info("Reloading Netlab Agent after receiving SIGHUP signal")
		return &sighupError{}
	default:
		log.Info("Received Ctrl-C signal")
		return &ctrlcError{}
	}
}

// Prepare urfave cli app with all flags defined.
func setupApp(reload bool) *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Println(c.App.Version)
	}

	app := &cli.App{
		Name:     "Netlab Agent",
		Usage:    "This component runs on each lab machine and reports its state to the Netlab Server",
		Version:  netlab.Version,
		HelpName: "netlab-agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "0.0.0.0",
				Usage:   "The IP or hostname to listen on for incoming connections",
				EnvVars: []string{"NETLAB_AGENT_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8888,
				Usage:   "The TCP port to listen on for incoming connections",
				EnvVars: []string{"NETLAB_AGENT_PORT"},
			},
			&cli.IntFlag{
				Name:    "prometheus-port",
				Value:   9547,
				Usage:   "The TCP port to listen on for Prometheus scrapes",
				EnvVars: []string{"NETLAB_AGENT_PROMETHEUS_PORT"},
			},
			&cli.IntFlag{
				Name:    "prometheus-interval",
				Value:   10,
				Usage:   "Metrics collection interval in seconds",
				EnvVars: []string{"NETLAB_AGENT_PROMETHEUS_INTERVAL"},
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "URL of the Netlab Server to register in; registration is skipped when empty",
				EnvVars: []string{"NETLAB_AGENT_SERVER_URL"},
			},
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Environment file with agent settings",
				EnvVars: []string{"NETLAB_AGENT_ENV_FILE"},
			},
		},
		Action: func(c *cli.Context) error {
			if serverURL := c.String("server-url"); serverURL != "" {
				if host, _ := netlabutil.ParseURL(serverURL); host == "" {
					log.Fatalf("Cannot parse the server URL: %s", serverURL)
				}
				if c.String("host") == "0.0.0.0" {
					log.Errorf("Registration cannot be made because the agent host address is not provided")
					log.Fatalf("Use --host option or the NETLAB_AGENT_HOST environment variable")
				}
			}
			return runAgent(c, reload)
		},
	}
	return app
}

// Main netlab-agent function.
func main() {
	reload := false
	for {
		netlabutil.SetupLogging()
		app := setupApp(reload)
		err := app.Run(os.Args)
		switch {
		case err == nil:
			return
		case errors.Is(err, &ctrlcError{}):
			os.Exit(130)
		case errors.Is(err, &sighupError{}):
			reload = true
		default:
			log.Fatal(err)
			return
		}
	}
}
