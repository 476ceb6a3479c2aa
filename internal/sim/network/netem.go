package network

import (
	"strconv"
)

// NetemArgs renders the config as tc-netem parameters. Dimensions left at zero
// are omitted, which under "qdisc replace" resets them to unimpaired.
func (c NetworkConfig) NetemArgs() []string {
	var args []string
	if c.DelayMs > 0 {
		args = append(args, "delay", strconv.Itoa(c.DelayMs)+"ms")
		if c.JitterMs > 0 {
			args = append(args, strconv.Itoa(c.JitterMs)+"ms", "distribution", "normal")
		}
	}
	if c.LossPercent > 0 {
		args = append(args, "loss", strconv.Itoa(c.LossPercent)+"%")
		if c.LossCorrelationPercent > 0 {
			args = append(args, strconv.Itoa(c.LossCorrelationPercent)+"%")
		}
	}
	if c.RateKbps > 0 {
		args = append(args, "rate", strconv.Itoa(c.RateKbps)+"kbit")
	}
	return args
}

// TcCommand builds the full tc invocation that makes iface carry exactly cfg.
// An unimpaired config removes the root qdisc instead of installing an empty netem.
func TcCommand(iface string, cfg NetworkConfig) []string {
	if cfg.IsZero() {
		return []string{"tc", "qdisc", "del", "dev", iface, "root"}
	}
	cmd := []string{"tc", "qdisc", "replace", "dev", iface, "root", "netem"}
	return append(cmd, cfg.NetemArgs()...)
}
