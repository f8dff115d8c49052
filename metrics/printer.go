package metrics

import (
	"github.com/apex/log"
)

// BasePrinter logs the interval snapshot as a structured log entry
type BasePrinter struct {
	filter map[string]struct{}
	log    *log.Entry
}

var _ IntervalWriter = (*BasePrinter)(nil)

// NewBasePrinter returns a printer logging only the listed metrics (or all when the list is empty)
func NewBasePrinter(filter []string) *BasePrinter {
	var filterMap map[string]struct{}

	if len(filter) > 0 {
		filterMap = make(map[string]struct{}, len(filter))

		for _, name := range filter {
			filterMap[name] = struct{}{}
		}
	}

	return &BasePrinter{filter: filterMap, log: log.WithField("context", "metrics")}
}

func (p *BasePrinter) Run(interval int) error {
	p.log.Infof("Log metrics every %ds", interval)
	return nil
}

func (p *BasePrinter) Stop() {
}

func (p *BasePrinter) Write(m *Metrics) error {
	p.Print(m.IntervalSnapshot())
	return nil
}

func (p *BasePrinter) Print(snapshot map[string]uint64) {
	fields := make(log.Fields, len(snapshot))

	for k, v := range snapshot {
		if p.filter != nil {
			if _, ok := p.filter[k]; !ok {
				continue
			}
		}

		fields[k] = v
	}

	p.log.WithFields(fields).Info("")
}
