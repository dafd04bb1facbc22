package main

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/wesleywu/ocs-route/internal/config"
	"github.com/wesleywu/ocs-route/internal/logger"
	"github.com/wesleywu/ocs-route/internal/network"
	"github.com/wesleywu/ocs-route/internal/routing"
	"github.com/wesleywu/ocs-route/internal/routing/batch"
	"github.com/wesleywu/ocs-route/internal/routing/circuit"
	"github.com/wesleywu/ocs-route/internal/routing/engine"
	"github.com/wesleywu/ocs-route/internal/routing/entities"
	"github.com/wesleywu/ocs-route/internal/routing/metrics"
)

var (
	version = "1.0.0"

	configFile   string
	scenarioFile string
	silentMode   bool
	verboseMode  bool
	noColor      bool
	showMetrics  bool

	outputIface int64
	inputIface  uint32
	deliverable bool
	holdGate    bool
	hostNode    bool
	interval    time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ocsroute",
		Short: "Forwarding decisions for nodes behind an optical circuit switch",
		Long: `Inspect and exercise a static forwarding table whose transit traffic is
constrained by the cross-connects of an external circuit fabric.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	tableCmd := &cobra.Command{
		Use:   "table",
		Short: "Print the routing table",
		Long:  `Print the routing table of the scenario (or of the host with --host) in route -n layout.`,
		RunE:  showTable,
	}
	tableCmd.Flags().BoolVar(&hostNode, "host", false, "Use the host interfaces instead of a scenario")

	lookupCmd := &cobra.Command{
		Use:   "lookup <destination>",
		Short: "Resolve the route for a locally originated packet",
		Args:  cobra.ExactArgs(1),
		RunE:  runLookup,
	}
	lookupCmd.Flags().Int64Var(&outputIface, "oif", -1, "Bind the lookup to an output interface")

	forwardCmd := &cobra.Command{
		Use:   "forward <destination>",
		Short: "Decide what happens to a packet received on an interface",
		Args:  cobra.ExactArgs(1),
		RunE:  runForward,
	}
	forwardCmd.Flags().Uint32Var(&inputIface, "iif", 0, "Input interface")
	forwardCmd.Flags().BoolVar(&deliverable, "local", true, "A local delivery path is available")
	_ = forwardCmd.MarkFlagRequired("iif")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Run the scenario probes through the engine",
		RunE:  runReplay,
	}

	reconfigureCmd := &cobra.Command{
		Use:   "reconfigure <in:out>...",
		Short: "Replace the cross-connects and show the resulting decisions",
		Long: `Apply a new cross-connect state to the scenario fabric. The gate is raised,
the map cleared, the pairs installed and the gate returned to its previous state.
With --hold the gate is left raised.
The scenario probes are replayed against the new state.`,
		RunE: runReconfigure,
	}
	reconfigureCmd.Flags().BoolVar(&holdGate, "hold", false, "Leave the reconfiguration gate raised")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and scenario",
		RunE:  runCheck,
	}
	checkCmd.Flags().BoolVar(&hostNode, "host", false, "Also load the host interfaces")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the host interfaces and print the table on every change",
		Long: `Attach an engine to the host interfaces and keep its on-link routes in step
with link and address changes until interrupted.`,
		RunE: runWatch,
	}
	watchCmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run:   showVersion,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&scenarioFile, "scenario", "", "Scenario file (overrides config, default is the built-in sample)")
	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Silent mode (no log output)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "Verbose mode (debug level logging)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "Print metrics after the command")

	rootCmd.AddCommand(tableCmd, lookupCmd, forwardCmd, replayCmd, reconfigureCmd, checkCmd, watchCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	scenario *config.Scenario
	instance *routing.Instance
}

func loadRuntime() (*session, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if scenarioFile != "" {
		cfg.Scenario = scenarioFile
	}
	if verboseMode {
		cfg.LogLevel = "debug"
	}
	if noColor {
		color.NoColor = true
	}

	log := logger.New(cfg.LogLevel)
	if silentMode {
		log = logger.NewSilent()
	}

	reg := prometheus.NewRegistry()
	return &session{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  metrics.NewMetrics(cfg.MetricsNamespace, reg),
	}, nil
}

func loadSession() (*session, error) {
	s, err := loadRuntime()
	if err != nil {
		return nil, err
	}

	s.scenario, err = config.LoadScenarioWithFallback(s.cfg.Scenario)
	if err != nil {
		return nil, err
	}
	s.instance, err = routing.Build(s.scenario, s.cfg, s.log, s.metrics)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	if s.instance != nil {
		s.instance.Close()
	}
	if showMetrics {
		writeMetrics(os.Stdout, s.registry)
	}
	_ = s.log.Sync()
}

func showTable(_ *cobra.Command, _ []string) error {
	if hostNode {
		return showHostTable()
	}

	s, err := loadSession()
	if err != nil {
		return err
	}
	defer s.close()

	printTable(os.Stdout, s.instance.Engine.Dump())
	printCircuits(os.Stdout, s.instance.Switch)
	return nil
}

func showHostTable() error {
	node, err := network.LoadHostNode()
	if err != nil {
		return err
	}
	eng, err := engine.New(circuit.NewMap(), circuit.NewLatch(), engine.Options{})
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := eng.SetNode(node); err != nil {
		return err
	}
	printTable(os.Stdout, eng.Dump())
	return nil
}

func runLookup(_ *cobra.Command, args []string) error {
	dst, err := parseAddr(args[0])
	if err != nil {
		return err
	}

	s, err := loadSession()
	if err != nil {
		return err
	}
	defer s.close()

	oif, err := lookupInterface(outputIface)
	if err != nil {
		return err
	}

	route, err := s.instance.Engine.ResolveOutputRoute(dst, oif)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stdout, "%s: %v\n", dst, err)
		return err
	}
	color.New(color.FgGreen).Fprintf(os.Stdout, "%s\n", route)
	return nil
}

func runForward(_ *cobra.Command, args []string) error {
	dst, err := parseAddr(args[0])
	if err != nil {
		return err
	}

	s, err := loadSession()
	if err != nil {
		return err
	}
	defer s.close()

	d := s.instance.Engine.ResolveInputForwarding(engine.InputRequest{
		Destination:       dst,
		InputInterface:    inputIface,
		CanDeliverLocally: deliverable,
	})
	printDecision(os.Stdout, dst, d)
	return nil
}

func runReplay(_ *cobra.Command, _ []string) error {
	s, err := loadSession()
	if err != nil {
		return err
	}
	defer s.close()

	return replay(os.Stdout, s)
}

func runReconfigure(_ *cobra.Command, args []string) error {
	pairs, err := parsePairs(args)
	if err != nil {
		return err
	}

	s, err := loadSession()
	if err != nil {
		return err
	}
	defer s.close()

	installed, err := s.instance.Switch.Reconfigure(pairs)
	if err != nil {
		color.New(color.FgYellow).Fprintf(os.Stdout, "⚠️  %v\n", err)
	}
	if holdGate {
		s.instance.Switch.SetGate(true)
	}
	fmt.Printf("Installed %d of %d cross-connects (gate %s)\n",
		installed, len(pairs), gateState(s.instance.Switch.Gate().IsActive()))

	printCircuits(os.Stdout, s.instance.Switch)
	return replay(os.Stdout, s)
}

func runCheck(_ *cobra.Command, _ []string) error {
	s, err := loadSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return err
	}
	defer s.close()

	source := s.cfg.Scenario
	if source == "" {
		source = "built-in sample"
	}
	fmt.Println("✅ Configuration loaded successfully")
	fmt.Printf("✅ Scenario loaded (%s): %d interfaces, %d routes, %d cross-connects, %d probes\n",
		source, len(s.scenario.Interfaces), s.instance.Engine.Table().RouteCount(),
		s.instance.Switch.Fabric().Size(), len(s.scenario.Probes))

	if hostNode {
		interfaces, err := network.GetNetworkInterfaces()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to load host interfaces: %v\n", err)
			return err
		}
		fmt.Printf("✅ Host interfaces: %d\n", len(interfaces))
		for _, info := range interfaces {
			if !info.HasIPv4() {
				continue
			}
			s.log.Debug("Host interface details", "index", info.ID, "name", info.Name,
				"up", info.IsUp, "addresses", info.GetIPv4Addresses())
			fmt.Printf("   %-3d %-10s %v\n", info.ID, info.Name, info.GetIPv4Addresses())
		}
	}

	fmt.Println("✅ All checks passed")
	return nil
}

func runWatch(_ *cobra.Command, _ []string) error {
	s, err := loadRuntime()
	if err != nil {
		return err
	}
	defer s.close()

	node := network.NewStaticNode()
	eng, err := engine.New(circuit.NewMap(), circuit.NewLatch(), engine.Options{
		Logger:    s.log,
		Metrics:   s.metrics,
		CacheSize: s.cfg.CacheSize,
	})
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := eng.SetNode(node); err != nil {
		return err
	}
	node.Subscribe(eng)

	watcher := network.NewWatcher(node, network.WatcherOptions{
		PollInterval: interval,
		Logger:       s.log.WithFields("interval", interval.String()),
		KernelEvents: true,
	})
	if _, err := watcher.Sync(); err != nil {
		return err
	}
	printTable(os.Stdout, eng.Dump())

	if err := watcher.Start(func(changes int) {
		fmt.Printf("\n%d interface changes at %s\n", changes, time.Now().Format(time.TimeOnly))
		printTable(os.Stdout, eng.Dump())
	}); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	s.log.Info("Stopping watcher")
	return watcher.Stop()
}

func showVersion(_ *cobra.Command, _ []string) {
	fmt.Printf("OCS Route v%s\n", version)
	fmt.Printf("Runtime: %s\n", runtime.Version())
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func replay(w io.Writer, s *session) error {
	var inputs []engine.InputRequest
	var outputs []batch.OutputQuery
	for _, p := range s.scenario.Probes {
		dst, err := p.Addr()
		if err != nil {
			return err
		}
		if p.Direction == config.DirectionInput {
			inputs = append(inputs, engine.InputRequest{
				Destination:       dst,
				InputInterface:    p.BoundInterface(),
				CanDeliverLocally: p.Local,
			})
			continue
		}
		outputs = append(outputs, batch.OutputQuery{Destination: dst, Interface: p.BoundInterface()})
	}

	decisions, err := batch.ResolveInputs(inputs, s.instance.Engine, s.cfg.ConcurrencyLimit, s.log)
	if err != nil {
		return err
	}
	for i, d := range decisions {
		printDecision(w, inputs[i].Destination, d)
	}

	// Per-query failures are shown inline
	results, _ := batch.ResolveOutputs(outputs, s.instance.Engine, s.cfg.ConcurrencyLimit, s.log)
	for _, r := range results {
		if r.Err != nil {
			color.New(color.FgRed).Fprintf(w, "output %-15s %v\n", r.Query.Destination, r.Err)
			continue
		}
		color.New(color.FgGreen).Fprintf(w, "output %-15s %s\n", r.Query.Destination, r.Route)
	}
	return nil
}

func printDecision(w io.Writer, dst netip.Addr, d engine.Decision) {
	c := color.New(color.FgHiBlack)
	detail := ""
	switch d.Outcome {
	case engine.Forward:
		c = color.New(color.FgGreen)
		detail = d.Route.String()
	case engine.LocalDeliver:
		c = color.New(color.FgCyan)
	case engine.Refused:
		c = color.New(color.FgRed)
		detail = d.Condition.String()
	}
	c.Fprintf(w, "input  %-15s iif %-4d %-15s %s\n", dst, d.InputInterface, d.Outcome, detail)
}

// printTable renders rows the way route -n does
func printTable(w io.Writer, rows []entities.DumpRow) {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.Destination.String(),
			r.Gateway.String(),
			r.Mask.String(),
			r.Flags,
			strconv.FormatUint(uint64(r.Metric), 10),
			"-",
			"-",
			r.Iface(),
		})
	}

	fmt.Fprintln(w, "Kernel IP routing table")
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Destination", "Gateway", "Genmask", "Flags", "Metric", "Ref", "Use", "Iface"})
	table.AppendBulk(data)
	table.Render()
}

func printCircuits(w io.Writer, sw *routing.Switch) {
	header := color.New(color.FgHiBlack)
	header.Fprintf(w, "\nCross-connects (gate %s):\n", gateState(sw.Gate().IsActive()))
	conns := sw.Fabric().CrossConnects()
	if len(conns) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, c := range conns {
		fmt.Fprintf(w, "  %d -> %d\n", c.Input, c.Output)
	}
}

func writeMetrics(w io.Writer, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to gather metrics: %v\n", err)
		return
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode metrics: %v\n", err)
			return
		}
	}
}

func gateState(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func parseAddr(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil || !entities.IsIPv4(a) {
		return netip.Addr{}, fmt.Errorf("invalid IPv4 address: %s", s)
	}
	return a.Unmap(), nil
}

// lookupInterface maps the --oif flag to an interface filter. Negative means
// unbound; the all-ones index is reserved for that and is rejected.
func lookupInterface(v int64) (uint32, error) {
	if v < 0 {
		return engine.AnyInterface, nil
	}
	if v >= int64(engine.AnyInterface) {
		return 0, fmt.Errorf("output interface %d out of range", v)
	}
	return uint32(v), nil
}

// parsePairs parses "1:2" style cross-connects
func parsePairs(args []string) ([]circuit.CrossConnect, error) {
	pairs := make([]circuit.CrossConnect, 0, len(args))
	for _, arg := range args {
		in, out, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("invalid cross-connect %q, want in:out", arg)
		}
		input, err := strconv.ParseUint(in, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid input interface in %q: %w", arg, err)
		}
		output, err := strconv.ParseUint(out, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid output interface in %q: %w", arg, err)
		}
		pairs = append(pairs, circuit.CrossConnect{Input: uint32(input), Output: uint32(output)})
	}
	return pairs, nil
}
