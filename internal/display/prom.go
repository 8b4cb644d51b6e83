package display

import (
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"google.golang.org/protobuf/proto"
)

// renderProm writes two gauge families: hostfacts_info carrying every
// field as a label, and hostfacts_field_available with one series per
// field.
func renderProm(w io.Writer, info sysinfo.SystemInfo, fields []sysinfo.Field) error {
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range MetricFamilies(info, fields) {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// MetricFamilies builds the Prometheus families for a snapshot.
// Unavailable facets have an empty label value.
func MetricFamilies(info sysinfo.SystemInfo, fields []sysinfo.Field) []*dto.MetricFamily {
	if len(fields) == 0 {
		fields = sysinfo.AllFields()
	}

	labels := make([]*dto.LabelPair, 0, len(fields))
	available := make([]*dto.Metric, 0, len(fields))
	for _, f := range fields {
		labels = append(labels, &dto.LabelPair{
			Name:  proto.String(f.Key()),
			Value: proto.String(info.Get(f)),
		})

		value := 0.0
		if info.Available(f) {
			value = 1
		}
		available = append(available, &dto.Metric{
			Label: []*dto.LabelPair{{Name: proto.String("field"), Value: proto.String(f.Key())}},
			Gauge: &dto.Gauge{Value: proto.Float64(value)},
		})
	}

	return []*dto.MetricFamily{
		{
			Name: proto.String("hostfacts_info"),
			Help: proto.String("Host facts of the latest snapshot; the value is always 1."),
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Label: labels,
				Gauge: &dto.Gauge{Value: proto.Float64(1)},
			}},
		},
		{
			Name:   proto.String("hostfacts_field_available"),
			Help:   proto.String("Whether each fact could be determined (1) or not (0)."),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: available,
		},
	}
}
