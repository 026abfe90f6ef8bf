package config

import (
	"fmt"

	"github.com/spf13/viper"

	"equipment-monitor/internal/models"
)

// Catalog is the seed data for devices, metric types and thresholds read from a YAML file.
type Catalog struct {
	Devices     []CatalogDevice     `mapstructure:"devices"`
	MetricTypes []CatalogMetricType `mapstructure:"metric_types"`
	Thresholds  []CatalogThreshold  `mapstructure:"thresholds"`
}

type CatalogDevice struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Type  string `mapstructure:"type"`
	Area  string `mapstructure:"area"`
	Owner string `mapstructure:"owner"`
}

type CatalogMetricType struct {
	Name     string  `mapstructure:"name"`
	Unit     string  `mapstructure:"unit"`
	ValidMin float64 `mapstructure:"valid_min"`
	ValidMax float64 `mapstructure:"valid_max"`
}

type CatalogThreshold struct {
	DeviceID   string  `mapstructure:"device_id"`
	DeviceType string  `mapstructure:"device_type"`
	Metric     string  `mapstructure:"metric"`
	Min        float64 `mapstructure:"min"`
	Max        float64 `mapstructure:"max"`
	Warning    float64 `mapstructure:"warning"`
	Critical   float64 `mapstructure:"critical"`
	Emergency  float64 `mapstructure:"emergency"`
}

// LoadCatalog reads and validates a catalog file. Band factors left out of a
// threshold entry default to 5%, 10% and 20%.
func LoadCatalog(path string) (Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var cat Catalog
	if err := v.Unmarshal(&cat); err != nil {
		return Catalog{}, fmt.Errorf("unable to decode catalog %s: %w", path, err)
	}

	for i := range cat.Thresholds {
		t := &cat.Thresholds[i]
		if t.Warning == 0 && t.Critical == 0 && t.Emergency == 0 {
			t.Warning, t.Critical, t.Emergency = 0.05, 0.10, 0.20
		}
	}

	for _, d := range cat.Devices {
		if d.ID == "" {
			return Catalog{}, fmt.Errorf("catalog %s: device without id", path)
		}
		if !models.DeviceType(d.Type).Valid() {
			return Catalog{}, fmt.Errorf("catalog %s: device %s has unknown type %q", path, d.ID, d.Type)
		}
	}
	for _, th := range cat.ThresholdModels() {
		if err := th.Validate(); err != nil {
			return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
		}
	}

	return cat, nil
}

func (c Catalog) DeviceModels() []models.Device {
	out := make([]models.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, models.Device{
			ID:     d.ID,
			Name:   d.Name,
			Type:   models.DeviceType(d.Type),
			Area:   d.Area,
			Owner:  d.Owner,
			Status: models.DeviceStatusNormal,
		})
	}
	return out
}

func (c Catalog) MetricTypeModels() []models.MetricType {
	out := make([]models.MetricType, 0, len(c.MetricTypes))
	for _, m := range c.MetricTypes {
		out = append(out, models.MetricType(m))
	}
	return out
}

func (c Catalog) ThresholdModels() []models.Threshold {
	out := make([]models.Threshold, 0, len(c.Thresholds))
	for _, t := range c.Thresholds {
		out = append(out, models.Threshold{
			DeviceID:   t.DeviceID,
			DeviceType: models.DeviceType(t.DeviceType),
			MetricType: t.Metric,
			Min:        t.Min,
			Max:        t.Max,
			Bands: models.Bands{
				Warning:   t.Warning,
				Critical:  t.Critical,
				Emergency: t.Emergency,
			},
		})
	}
	return out
}
