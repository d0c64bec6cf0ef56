package severity

import "github.com/YumeNoTenshi/utilwatch/internal/models"

// Offenders keeps the samples at WARN or ALERT, in input order.
func Offenders(samples []models.InstanceSample) []models.InstanceSample {
	var out []models.InstanceSample
	for _, s := range samples {
		if Sample(s).Offending() {
			out = append(out, s)
		}
	}
	return out
}
