package docker

import (
	"time"
)

// Fixed container identities. They are singletons on the host, which is why runs
// never overlap.
const (
	ClientA         = "client_a"
	ClientB         = "client_b"
	SignalingServer = "signaling_server"
	Turn            = "turn"
	Tcpdump         = "tcpdump"
	Visqol          = "visqol"
)

// AllContainers is the full set removed by a pre-run clean.
var AllContainers = []string{ClientA, ClientB, SignalingServer, Turn, Tcpdump, Visqol}

var perRunContainers = []string{ClientA, ClientB, Tcpdump}

// Mount points inside the containers.
const (
	MediaMount   = "/media"
	ReportMount  = "/report"
	ResultsMount = "/results"
)

const (
	DefaultNetworkName    = "callsim"
	DefaultStartupTimeout = 60 * time.Second
	defaultStopTimeout    = 10 * time.Second

	// clients keep the call up slightly longer than the run so that the run's own
	// timer, not the client, ends a healthy call
	callLengthGrace = 5 * time.Second

	netemInterface = "eth0"
)

type Images struct {
	Client    string
	Signaling string
	Turn      string
	Tcpdump   string
	Visqol    string
}

func DefaultImages() Images {
	return Images{
		Client:    "call_sim-cli:latest",
		Signaling: "signaling_server:latest",
		Turn:      "turn:latest",
		Tcpdump:   "tcpdump:latest",
		Visqol:    "visqol:latest",
	}
}

// Config holds host paths and timeouts for one Manager. MediaDir and ResultsDir
// must be absolute host paths since they are bind mounted.
type Config struct {
	NetworkName string
	// Root is the source tree the images are built from.
	Root           string
	MediaDir       string
	ResultsDir     string
	StartupTimeout time.Duration
	Images         Images
}

func (c *Config) applyDefaults() {
	if c.NetworkName == "" {
		c.NetworkName = DefaultNetworkName
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.Images == (Images{}) {
		c.Images = DefaultImages()
	}
}
