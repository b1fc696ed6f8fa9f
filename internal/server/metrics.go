package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"moto-yard/internal/logging"
	"moto-yard/internal/parking"
)

// occupancyCollector reports slot counts per sector and status at scrape
// time, from a fresh store snapshot.
type occupancyCollector struct {
	coordinator *parking.InstrumentedCoordinator
	timeout     time.Duration

	slots *prometheus.Desc
	up    *prometheus.Desc
}

func newOccupancyCollector(coordinator *parking.InstrumentedCoordinator) *occupancyCollector {
	return &occupancyCollector{
		coordinator: coordinator,
		timeout:     5 * time.Second,
		slots: prometheus.NewDesc("moto_yard_slots",
			"Number of slots per sector and occupancy status.",
			[]string{"sector", "status"}, nil),
		up: prometheus.NewDesc("moto_yard_store_up",
			"Whether the last occupancy scrape reached the store.",
			nil, nil),
	}
}

func (c *occupancyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.slots
	ch <- c.up
}

func (c *occupancyCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	catalog, idx, err := c.coordinator.Occupancy(ctx)
	if err != nil {
		logging.Warn(ctx, "occupancy scrape failed", "error", err.Error())
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)

	for _, s := range parking.Summarize(catalog, idx) {
		occupied := s.Occupied - s.NoPlate
		ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(s.Free), s.Prefix, string(parking.StatusFree))
		ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(occupied), s.Prefix, string(parking.StatusOccupied))
		ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(s.NoPlate), s.Prefix, string(parking.StatusOccupiedNoPlate))
	}
}
