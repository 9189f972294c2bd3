package metrics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// TextfileGatherer serves the metrics a pipeline run exported with WriteTextfile.
// The file is read on every scrape; a missing file gathers nothing.
func TextfileGatherer(path string) prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()

		parser := expfmt.NewTextParser(model.UTF8Validation)
		byName, err := parser.TextToMetricFamilies(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		families := make([]*dto.MetricFamily, 0, len(byName))
		for _, mf := range byName {
			families = append(families, mf)
		}
		sort.Slice(families, func(i, j int) bool {
			return families[i].GetName() < families[j].GetName()
		})
		return families, nil
	})
}

// ServeGatherer exposes Go runtime and process metrics, plus the stage metrics in
// textfile when one is configured.
func ServeGatherer(textfile string) prometheus.Gatherer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if textfile == "" {
		return reg
	}
	return prometheus.Gatherers{reg, TextfileGatherer(textfile)}
}
