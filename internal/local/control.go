package local

import "fmt"

// CLIShowChannels implements `local show channels` (§6): one line per live
// pair, or the literal "No local channels in use".
func (d *Driver) CLIShowChannels() []string {
	snaps := d.registry.List()
	if len(snaps) == 0 {
		return []string{"No local channels in use"}
	}

	lines := make([]string, 0, len(snaps))
	for _, s := range snaps {
		name := s.AName
		if name == "" {
			name = "<unowned>"
		}
		lines = append(lines, fmt.Sprintf("%s -- %s@%s", name, s.Extension, s.Context))
	}
	return lines
}

// OptimizeAway implements the `LocalOptimizeAway` management action
// (§4.6, §6): resolve channel to its pair, verify membership in the
// registry, and clear NO_OPTIMIZATION under pair lock. The self-splice
// happens on the next eligible media write.
func (d *Driver) OptimizeAway(channel string) error {
	if channel == "" {
		return &DestinationError{Raw: channel, Reason: "Channel header required"}
	}

	p, ok := d.registry.Lookup(channel)
	if !ok {
		return ErrUnknownChannel
	}

	p.Lock()
	defer p.Unlock()

	// Lookup already guarantees membership in this registry, so there is
	// no separate "not a local channel" branch to take here — that error
	// is returned one layer up, by the admin transport, for channel names
	// that do not start with "Local/".
	p.clearFlag(FlagNoOptimization)
	return nil
}
