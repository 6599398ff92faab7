package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/b0ch3nski/go-dnsmasq-utils/dnsmasq"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/grimm00/networking-learning-sub003"
	"github.com/grimm00/networking-learning-sub003/analyzer/dhcpcheck"
	"github.com/grimm00/networking-learning-sub003/analyzer/dnscheck"
	"github.com/grimm00/networking-learning-sub003/analyzer/iface"
	"github.com/grimm00/networking-learning-sub003/analyzer/ipv4calc"
	"github.com/grimm00/networking-learning-sub003/analyzer/lbcheck"
	"github.com/grimm00/networking-learning-sub003/analyzer/moncheck"
	"github.com/grimm00/networking-learning-sub003/analyzer/ntpcheck"
	"github.com/grimm00/networking-learning-sub003/analyzer/osi"
	"github.com/grimm00/networking-learning-sub003/analyzer/scan"
	"github.com/grimm00/networking-learning-sub003/analyzer/sockets"
	"github.com/grimm00/networking-learning-sub003/lab"
	dbops "github.com/grimm00/networking-learning-sub003/server/database"
	netlabutil "github.com/grimm00/networking-learning-sub003/util"
)

// Prints a result structure as indented JSON.
func printJSON(value interface{}) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

// Establish connection to a database with opts from command line.
// Returns the database instance. It must be closed by caller.
func getDBConn(c *cli.Context) *dbops.PgDB {
	settings := &dbops.DatabaseSettings{
		DBName:   c.String("db-name"),
		User:     c.String("db-user"),
		Password: c.String("db-password"),
		Host:     c.String("db-host"),
		Port:     c.Int("db-port"),
	}
	dbops.Password(settings)

	db, err := dbops.NewPgDBConn(settings.PgParams())
	if err != nil {
		log.WithError(err).Fatal("Unexpected error")
	}
	return db
}

// Execute a db migration command and report the version change.
func runDBMigrate(c *cli.Context, args ...string) error {
	db := getDBConn(c)
	defer db.Close()

	oldVersion, newVersion, err := dbops.Migrate(db, args...)
	if err != nil {
		return err
	}
	switch {
	case oldVersion == newVersion:
		log.Infof("Database version is %d, no migration was needed", newVersion)
	default:
		log.Infof("Migrated database from version %d to %d", oldVersion, newVersion)
	}
	return nil
}

func runInterfaceList(c *cli.Context) error {
	interfaces, err := iface.NewAnalyzer().ListInterfaces()
	if err != nil {
		return err
	}
	return printJSON(interfaces)
}

func runInterfaceShow(c *cli.Context) error {
	details, err := iface.NewAnalyzer().GetInterface(c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(details)
}

func runRoutes(c *cli.Context) error {
	routes, err := iface.NewAnalyzer().Routes()
	if err != nil {
		return err
	}
	return printJSON(routes)
}

func runConnectivity(c *cli.Context) error {
	target := c.Args().First()
	if target == "" {
		target = "8.8.8.8"
	}
	reachable := iface.NewAnalyzer().TestConnectivity(target, 3*time.Second)
	return printJSON(map[string]interface{}{
		"target":    target,
		"reachable": reachable,
	})
}

func runDNSAnalyze(c *cli.Context) error {
	analyzer, err := dnscheck.NewAnalyzer(c.String("server"))
	if err != nil {
		return err
	}
	report, err := analyzer.AnalyzeDomain(c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runDNSPropagation(c *cli.Context) error {
	analyzer, err := dnscheck.NewAnalyzer(c.String("server"))
	if err != nil {
		return err
	}
	results, consistent := analyzer.CheckPropagation(c.Args().First())
	return printJSON(map[string]interface{}{
		"results":    results,
		"consistent": consistent,
	})
}

func runDNSReverse(c *cli.Context) error {
	analyzer, err := dnscheck.NewAnalyzer(c.String("server"))
	if err != nil {
		return err
	}
	lookup, err := analyzer.Reverse(c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(lookup)
}

func runDNSPerformance(c *cli.Context) error {
	analyzer, err := dnscheck.NewAnalyzer(c.String("server"))
	if err != nil {
		return err
	}
	return printJSON(analyzer.MeasurePerformance(c.Args().First(), c.Int("samples")))
}

func runNTPCheck(c *cli.Context) error {
	return printJSON(ntpcheck.NewAnalyzer(c.Args().First()).AnalyzeServer(c.Int("samples")))
}

func runIPv4Info(c *cli.Context) error {
	info, err := ipv4calc.AnalyzeAddress(c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(info)
}

func runIPv4Split(c *cli.Context) error {
	var subnets []*ipv4calc.AddressInfo
	var err error
	if hosts := c.Int("hosts"); hosts > 0 {
		subnets, err = ipv4calc.SplitByHostCount(c.Args().First(), hosts)
	} else {
		subnets, err = ipv4calc.SplitIntoSubnets(c.Args().First(), c.Int("subnets"))
	}
	if err != nil {
		return err
	}
	return printJSON(subnets)
}

func runIPv4VLSM(c *cli.Context) error {
	var hostCounts []int
	for _, arg := range c.Args().Tail() {
		hosts, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid host count %s", arg)
		}
		hostCounts = append(hostCounts, hosts)
	}
	allocations, err := ipv4calc.PlanVLSM(c.Args().First(), hostCounts)
	if err != nil {
		return err
	}
	return printJSON(allocations)
}

func runIPv4Summarize(c *cli.Context) error {
	summary, err := ipv4calc.Summarize(c.Args().Slice())
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runScan(c *cli.Context) error {
	ports, err := scan.ParsePorts(c.String("ports"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := scan.NewScanner(c.Int("workers")).Scan(ctx, c.Args().First(), ports)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runSockets(c *cli.Context) error {
	all, err := sockets.NewReader().ReadSockets()
	if err != nil {
		return err
	}
	return printJSON(sockets.Summarize(all))
}

func runDHCPLeases(c *cli.Context) error {
	pool, err := dhcpcheck.NewPool(c.String("pool-start"), c.String("pool-end"))
	if err != nil {
		return err
	}
	report, err := dhcpcheck.NewAnalyzer(c.String("lease-file"), pool).Analyze()
	if err != nil {
		return err
	}
	return printJSON(report)
}

// Reconstructs DHCP exchanges from a dnsmasq log. The lines carry no
// machine-readable timestamp, so line order stands in for time.
func runDHCPFlow(c *cli.Context) error {
	file, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer file.Close()

	var messages []dhcpcheck.Message
	base := time.Unix(0, 0)
	line := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if message := dhcpcheck.ParseLogLine(scanner.Text(), base.Add(time.Duration(line)*time.Second)); message != nil {
			messages = append(messages, *message)
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return printJSON(dhcpcheck.ReconstructFlows(messages))
}

// Follows the lease database and prints a fresh report on every change
// until interrupted.
func runDHCPWatch(c *cli.Context) error {
	pool, err := dhcpcheck.NewPool(c.String("pool-start"), c.String("pool-end"))
	if err != nil {
		return err
	}
	analyzer := dhcpcheck.NewAnalyzer(c.String("lease-file"), pool)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	leasesCh := make(chan []*dnsmasq.Lease, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- analyzer.WatchLeases(ctx, leasesCh)
	}()

	for {
		select {
		case leases := <-leasesCh:
			if err := printJSON(analyzer.AnalyzeLeases(leases)); err != nil {
				return err
			}
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func runOSILayers(c *cli.Context) error {
	if protocol := c.Args().First(); protocol != "" {
		layer, err := osi.ProtocolLayer(protocol)
		if err != nil {
			return err
		}
		return printJSON(layer)
	}
	return printJSON(osi.Layers())
}

func runOSIEncapsulate(c *cli.Context) error {
	protocol := c.Args().First()
	steps, err := osi.Encapsulate(protocol)
	if err != nil {
		return err
	}

	if target := c.String("target"); target != "" {
		port := c.Int("port")
		if port == 0 {
			if port, _, err = osi.ProtocolPort(protocol); err != nil {
				return err
			}
		}
		live, err := osi.AnalyzeCommunication(target, port, 5*time.Second)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"steps": steps,
			"live":  live,
		})
	}
	return printJSON(steps)
}

func runLBProbe(c *cli.Context) error {
	checker := lbcheck.NewChecker()
	checker.SetRequestTimeout(5 * time.Second)
	report, err := checker.ProbeFrontend(c.Args().First(), c.Int("samples"))
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runLBBackends(c *cli.Context) error {
	checker := lbcheck.NewChecker()
	checker.SetRequestTimeout(5 * time.Second)
	return printJSON(checker.CheckBackends(c.Args().Slice()))
}

func runMonCheck(c *cli.Context) error {
	checker := moncheck.NewChecker()
	checker.SetRequestTimeout(5 * time.Second)

	prometheus, err := checker.CheckPrometheus(c.String("prometheus-url"))
	if err != nil {
		return err
	}
	grafana, err := checker.CheckGrafana(c.String("grafana-url"))
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"prometheus": prometheus,
		"grafana":    grafana,
	})
}

func runLabPorts(c *cli.Context) error {
	topology, err := lab.LoadTopology(c.String("topology"))
	if err != nil {
		return err
	}
	report, err := lab.CheckPorts(topology, sockets.NewReader())
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runLabStatus(c *cli.Context) error {
	topology, err := lab.LoadTopology(c.String("topology"))
	if err != nil {
		return err
	}
	statuses, err := lab.ContainerStatuses(netlabutil.RealCommander{}, topology.ComposeFile)
	if err != nil {
		return err
	}
	if stopped := lab.VerifyContainers(topology, statuses); len(stopped) > 0 {
		log.Warnf("Containers not running: %v", stopped)
	}
	return printJSON(statuses)
}

func runLabDoctor(c *cli.Context) error {
	var topology *lab.Topology
	if path := c.String("topology"); path != "" {
		var err error
		if topology, err = lab.LoadTopology(path); err != nil {
			return err
		}
	}
	return printJSON(lab.Doctor(netlabutil.RealCommander{}, topology))
}

// Prepare urfave cli app with all flags and commands defined.
func setupApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Println(c.App.Version)
	}

	dnsFlags := []cli.Flag{
		&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "DNS server to query; system resolver when empty"},
	}
	dbFlags := []cli.Flag{
		&cli.StringFlag{Name: "db-name", Aliases: []string{"d"}, Value: "netlab", Usage: "The name of the database", EnvVars: []string{"NETLAB_DATABASE_NAME"}},
		&cli.StringFlag{Name: "db-user", Aliases: []string{"u"}, Value: "netlab", Usage: "The user name for database connections", EnvVars: []string{"NETLAB_DATABASE_USER_NAME"}},
		&cli.StringFlag{Name: "db-password", Usage: "The database password", EnvVars: []string{"NETLAB_DATABASE_PASSWORD"}},
		&cli.StringFlag{Name: "db-host", Value: "localhost", Usage: "The database host", EnvVars: []string{"NETLAB_DATABASE_HOST"}},
		&cli.IntFlag{Name: "db-port", Aliases: []string{"p"}, Value: 5432, Usage: "The database port", EnvVars: []string{"NETLAB_DATABASE_PORT"}},
	}
	topologyFlag := &cli.StringFlag{Name: "topology", Aliases: []string{"t"}, Usage: "Topology definition file", Required: true}
	dhcpFlags := []cli.Flag{
		&cli.StringFlag{Name: "lease-file", Value: "/var/lib/misc/dnsmasq.leases", Usage: "Path to the dnsmasq lease database"},
		&cli.StringFlag{Name: "pool-start", Required: true, Usage: "First address of the DHCP pool"},
		&cli.StringFlag{Name: "pool-end", Required: true, Usage: "Last address of the DHCP pool"},
	}

	app := &cli.App{
		Name:     "Netlab Tool",
		Usage:    "Diagnostics for the networking lab environments",
		Version:  netlab.Version,
		HelpName: "netlab-tool",
		Commands: []*cli.Command{
			{
				Name:     "interfaces",
				Usage:    "List network interfaces with statistics",
				Category: "Interfaces",
				Action:   runInterfaceList,
			},
			{
				Name:      "interface",
				Usage:     "Show details of one interface",
				UsageText: "netlab-tool interface <name>",
				Category:  "Interfaces",
				Action:    runInterfaceShow,
			},
			{
				Name:     "routes",
				Usage:    "Show the kernel routing table",
				Category: "Interfaces",
				Action:   runRoutes,
			},
			{
				Name:      "connectivity",
				Usage:     "Test that packets can leave the host towards a target",
				UsageText: "netlab-tool connectivity [target]",
				Category:  "Interfaces",
				Action:    runConnectivity,
			},
			{
				Name:      "dns",
				Usage:     "Analyze DNS records and detect issues for a domain",
				UsageText: "netlab-tool dns [options] <domain>",
				Category:  "DNS",
				Flags:     dnsFlags,
				Action:    runDNSAnalyze,
			},
			{
				Name:      "dns-reverse",
				Usage:     "Look up the PTR record of an address",
				UsageText: "netlab-tool dns-reverse [options] <address>",
				Category:  "DNS",
				Flags:     dnsFlags,
				Action:    runDNSReverse,
			},
			{
				Name:      "dns-propagation",
				Usage:     "Compare answers of public resolvers for a domain",
				UsageText: "netlab-tool dns-propagation <domain>",
				Category:  "DNS",
				Flags:     dnsFlags,
				Action:    runDNSPropagation,
			},
			{
				Name:      "dns-performance",
				Usage:     "Measure resolver response times for a domain",
				UsageText: "netlab-tool dns-performance [options] <domain>",
				Category:  "DNS",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "samples", Value: 10, Usage: "Number of queries to send"},
				}, dnsFlags...),
				Action: runDNSPerformance,
			},
			{
				Name:      "ntp",
				Usage:     "Check the health of an NTP server",
				UsageText: "netlab-tool ntp [options] <server>",
				Category:  "NTP",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "samples", Value: 4, Usage: "Number of queries to send"},
				},
				Action: runNTPCheck,
			},
			{
				Name:      "ipv4",
				Usage:     "Show address class, mask and host range of an address or CIDR",
				UsageText: "netlab-tool ipv4 <address[/prefix]>",
				Category:  "IPv4",
				Action:    runIPv4Info,
			},
			{
				Name:      "ipv4-split",
				Usage:     "Split a network into subnets by count or host capacity",
				UsageText: "netlab-tool ipv4-split [options] <network>",
				Category:  "IPv4",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "subnets", Value: 2, Usage: "Number of equally sized subnets"},
					&cli.IntFlag{Name: "hosts", Usage: "Required hosts per subnet; overrides --subnets"},
				},
				Action: runIPv4Split,
			},
			{
				Name:      "ipv4-vlsm",
				Usage:     "Plan variable length subnets for the given host counts",
				UsageText: "netlab-tool ipv4-vlsm <network> <hosts>...",
				Category:  "IPv4",
				Action:    runIPv4VLSM,
			},
			{
				Name:      "ipv4-summarize",
				Usage:     "Find the smallest supernet covering the given networks",
				UsageText: "netlab-tool ipv4-summarize <network>...",
				Category:  "IPv4",
				Action:    runIPv4Summarize,
			},
			{
				Name:      "scan",
				Usage:     "Scan TCP ports on a host",
				UsageText: "netlab-tool scan [options] <host>",
				Category:  "Scanning",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ports", Value: "common", Usage: "Ports to scan, e.g. 80,443 or 1-1024 or common"},
					&cli.IntFlag{Name: "workers", Value: 64, Usage: "Concurrent connection attempts"},
				},
				Action: runScan,
			},
			{
				Name:     "sockets",
				Usage:    "Summarize the local socket tables",
				Category: "Scanning",
				Action:   runSockets,
			},
			{
				Name:     "dhcp-leases",
				Usage:    "Analyze dnsmasq lease database and pool utilization",
				Category: "DHCP",
				Flags:    dhcpFlags,
				Action:   runDHCPLeases,
			},
			{
				Name:     "dhcp-watch",
				Usage:    "Follow the lease database and report on every change",
				Category: "DHCP",
				Flags:    dhcpFlags,
				Action:   runDHCPWatch,
			},
			{
				Name:      "dhcp-flow",
				Usage:     "Reconstruct DHCP exchanges from a dnsmasq log",
				UsageText: "netlab-tool dhcp-flow <logfile>",
				Category:  "DHCP",
				Action:    runDHCPFlow,
			},
			{
				Name:      "layers",
				Usage:     "Show the layered reference model or the layer of a protocol",
				UsageText: "netlab-tool layers [protocol]",
				Category:  "Reference",
				Action:    runOSILayers,
			},
			{
				Name:      "encapsulate",
				Usage:     "Walk through the encapsulation of an application protocol",
				UsageText: "netlab-tool encapsulate [options] <protocol>",
				Category:  "Reference",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "target", Usage: "Host to talk to for a live walkthrough"},
					&cli.IntFlag{Name: "port", Usage: "Port to connect to; the protocol default when omitted"},
				},
				Action: runOSIEncapsulate,
			},
			{
				Name:      "lb",
				Usage:     "Probe a load balancer frontend and show backend distribution",
				UsageText: "netlab-tool lb [options] <frontend-url>",
				Category:  "Load Balancing",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "samples", Value: 20, Usage: "Number of requests to send"},
				},
				Action: runLBProbe,
			},
			{
				Name:      "lb-backends",
				Usage:     "Check backend health endpoints directly",
				UsageText: "netlab-tool lb-backends <url>...",
				Category:  "Load Balancing",
				Action:    runLBBackends,
			},
			{
				Name:     "monitoring",
				Usage:    "Validate the Prometheus and Grafana stack",
				Category: "Monitoring",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prometheus-url", Value: "http://localhost:9090", Usage: "Prometheus base URL"},
					&cli.StringFlag{Name: "grafana-url", Value: "http://localhost:3000", Usage: "Grafana base URL"},
				},
				Action: runMonCheck,
			},
			{
				Name:     "lab-ports",
				Usage:    "Check that the service ports of a topology are open",
				Category: "Lab",
				Flags:    []cli.Flag{topologyFlag},
				Action:   runLabPorts,
			},
			{
				Name:     "lab-status",
				Usage:    "Show the container status of a topology",
				Category: "Lab",
				Flags:    []cli.Flag{topologyFlag},
				Action:   runLabStatus,
			},
			{
				Name:     "lab-doctor",
				Usage:    "Validate that the host can run the exercises",
				Category: "Lab",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "topology", Aliases: []string{"t"}, Usage: "Topology definition file"},
				},
				Action: runLabDoctor,
			},
			{
				Name:     "db-init",
				Usage:    "Create the schema versioning table in the database",
				Category: "Database Migration",
				Flags:    dbFlags,
				Action: func(c *cli.Context) error {
					return runDBMigrate(c, "init")
				},
			},
			{
				Name:     "db-up",
				Usage:    "Run all available migrations",
				Category: "Database Migration",
				Flags:    dbFlags,
				Action: func(c *cli.Context) error {
					return runDBMigrate(c, "up")
				},
			},
			{
				Name:      "db-down",
				Usage:     "Revert the last migration or migrate down to the given version",
				UsageText: "netlab-tool db-down [options] [version]",
				Category:  "Database Migration",
				Flags:     dbFlags,
				Action: func(c *cli.Context) error {
					args := []string{"down"}
					args = append(args, c.Args().Slice()...)
					return runDBMigrate(c, args...)
				},
			},
			{
				Name:     "db-reset",
				Usage:    "Revert all migrations and remove the schema versioning table",
				Category: "Database Migration",
				Flags:    dbFlags,
				Action: func(c *cli.Context) error {
					db := getDBConn(c)
					defer db.Close()
					if err := dbops.Toss(db); err != nil {
						return err
					}
					log.Info("Database reset to an empty state")
					return nil
				},
			},
			{
				Name:     "db-version",
				Usage:    "Show the current schema version",
				Category: "Database Migration",
				Flags:    dbFlags,
				Action: func(c *cli.Context) error {
					db := getDBConn(c)
					defer db.Close()
					version, err := dbops.CurrentVersion(db)
					if err != nil {
						return err
					}
					log.Infof("Database version is %d", version)
					return nil
				},
			},
		},
	}
	return app
}

// Main netlab-tool function.
func main() {
	netlabutil.SetupLogging()
	app := setupApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
