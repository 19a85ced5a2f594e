package stage

// Health is one pipeline step's readiness as shown on /healthz.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Unhealthy records why name cannot run, usually a missing binary or an
// unreachable publish target.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Report maps stage names to their last health check.
type Report map[string]Health

// AllReady is false when any stage is unhealthy. An empty report is ready.
func (r Report) AllReady() bool {
	for _, h := range r {
		if !h.Ready {
			return false
		}
	}
	return true
}
